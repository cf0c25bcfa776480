package analysis

import (
	"sort"

	models "nse-pulse/database/models_pkg"
)

// Delivery classification thresholds in percent
const (
	VeryHighDeliveryThreshold = 70.0
	HighDeliveryThreshold     = 50.0
	ModerateDeliveryThreshold = 30.0

	DefaultTopDeliveryMin   = ModerateDeliveryThreshold
	DefaultTopDeliveryLimit = 50
)

// DeliveryPercentage is deliveryQuantity as a share of quantityTraded, 0 when
// nothing traded.
func DeliveryPercentage(quantityTraded, deliveryQuantity float64) models.Percent {
	if quantityTraded <= 0 {
		return 0
	}
	return models.Percent(deliveryQuantity / quantityTraded * 100)
}

// DeliveryCounts are computed over the whole thresholded set
type DeliveryCounts struct {
	VeryHigh int `json:"veryHigh"`
	High     int `json:"high"`
	Moderate int `json:"moderate"`
}

// DeliveryClasses splits the returned ranking by band
type DeliveryClasses struct {
	VeryHigh []models.DeliverySecurity `json:"veryHigh"`
	High     []models.DeliverySecurity `json:"high"`
	Moderate []models.DeliverySecurity `json:"moderate"`
}

// TopDeliveryResult is the result of TopDelivery
type TopDeliveryResult struct {
	Stocks         []models.DeliverySecurity `json:"stocks"`
	TotalQualified int                       `json:"totalQualified"`
	MinPercent     float64                   `json:"minPercent"`
	Limit          int                       `json:"limit"`
	Counts         DeliveryCounts            `json:"counts"`
	Classification DeliveryClasses           `json:"classification"`
}

// TopDelivery keeps securities with deliveryPercentage >= minPercent, ranks them
// by deliveryPercentage descending and truncates to limit.
func TopDelivery(securities []models.DeliverySecurity, minPercent float64, limit int) TopDeliveryResult {
	if limit <= 0 {
		limit = DefaultTopDeliveryLimit
	}

	qualified := make([]models.DeliverySecurity, 0, len(securities))
	var counts DeliveryCounts
	for _, s := range securities {
		p := float64(s.DeliveryPercentage)
		if p < minPercent {
			continue
		}
		qualified = append(qualified, s)
		switch deliveryBand(p) {
		case "veryHigh":
			counts.VeryHigh++
		case "high":
			counts.High++
		case "moderate":
			counts.Moderate++
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].DeliveryPercentage != qualified[j].DeliveryPercentage {
			return qualified[i].DeliveryPercentage > qualified[j].DeliveryPercentage
		}
		return qualified[i].Symbol < qualified[j].Symbol
	})

	total := len(qualified)
	ranked := truncate(qualified, limit)

	classes := DeliveryClasses{
		VeryHigh: []models.DeliverySecurity{},
		High:     []models.DeliverySecurity{},
		Moderate: []models.DeliverySecurity{},
	}
	for _, s := range ranked {
		switch deliveryBand(float64(s.DeliveryPercentage)) {
		case "veryHigh":
			classes.VeryHigh = append(classes.VeryHigh, s)
		case "high":
			classes.High = append(classes.High, s)
		case "moderate":
			classes.Moderate = append(classes.Moderate, s)
		}
	}

	return TopDeliveryResult{
		Stocks:         ranked,
		TotalQualified: total,
		MinPercent:     minPercent,
		Limit:          limit,
		Counts:         counts,
		Classification: classes,
	}
}

func deliveryBand(p float64) string {
	switch {
	case p >= VeryHighDeliveryThreshold:
		return "veryHigh"
	case p >= HighDeliveryThreshold:
		return "high"
	case p >= ModerateDeliveryThreshold:
		return "moderate"
	default:
		return ""
	}
}

// SummarizeDelivery computes the market-wide delivery statistics.
// MarketDeliveryRatio is volume weighted (total delivered over total traded),
// while AvgDeliveryPercentage is the plain mean of the per-security values.
func SummarizeDelivery(securities []models.DeliverySecurity) models.DeliverySummary {
	var sum models.DeliverySummary
	sum.TotalStocks = len(securities)

	var pctTotal float64
	for _, s := range securities {
		sum.TotalTradedVolume += s.QuantityTraded
		sum.TotalDeliveryVolume += s.DeliveryQuantity
		pctTotal += float64(s.DeliveryPercentage)
		if float64(s.DeliveryPercentage) >= HighDeliveryThreshold {
			sum.HighDeliveryCount++
		}
	}
	if sum.TotalStocks > 0 {
		sum.AvgDeliveryPercentage = models.Percent(pctTotal / float64(sum.TotalStocks))
	}
	if sum.TotalTradedVolume > 0 {
		sum.MarketDeliveryRatio = models.Percent(sum.TotalDeliveryVolume / sum.TotalTradedVolume * 100)
	}
	return sum
}
