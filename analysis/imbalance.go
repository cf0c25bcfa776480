package analysis

import (
	"sort"
	"strings"

	models "nse-pulse/database/models_pkg"
)

const (
	// ImbalanceTopN is how many securities are returned per side
	ImbalanceTopN = 10
	// StrongImbalanceThreshold marks a strongly one-sided book, in percent
	StrongImbalanceThreshold = 50.0
)

// ImbalanceEntry is one ranked security
type ImbalanceEntry struct {
	Symbol                 string  `json:"symbol"`
	PChange                float64 `json:"pChange"`
	FinalPrice             float64 `json:"finalPrice"`
	Side                   string  `json:"side"`
	VolumeImbalancePercent float64 `json:"volumeImbalancePercent"`
	BidVolume              float64 `json:"bidVolume"`
	AskVolume              float64 `json:"askVolume"`
	SpreadPercent          float64 `json:"spreadPercent"`
}

// ImbalanceSummary counts are over the whole side, not the truncated list
type ImbalanceSummary struct {
	TotalBidDominant  int `json:"totalBidDominant"`
	TotalAskDominant  int `json:"totalAskDominant"`
	StrongBidDominant int `json:"strongBidDominant"`
	StrongAskDominant int `json:"strongAskDominant"`
}

// ImbalanceResult is the result of RankImbalance
type ImbalanceResult struct {
	BidDominant []ImbalanceEntry `json:"bidDominant"`
	AskDominant []ImbalanceEntry `json:"askDominant"`
	Summary     ImbalanceSummary `json:"summary"`
}

// DominantSide normalizes the scraper's side label to "BID", "ASK" or ""
func DominantSide(side string) string {
	switch strings.ToUpper(strings.TrimSpace(side)) {
	case "BID", "BUY", "BUYER", "BUYERS":
		return "BID"
	case "ASK", "SELL", "SELLER", "SELLERS":
		return "ASK"
	}
	return ""
}

// RankImbalance ranks securities by the upstream volumeImbalancePercent on
// each dominant side. Securities without spread analysis or a recognizable
// side are dropped.
func RankImbalance(securities []models.PreopenSecurity) ImbalanceResult {
	bids := []ImbalanceEntry{}
	asks := []ImbalanceEntry{}
	var sum ImbalanceSummary

	for _, s := range securities {
		sa := s.SpreadAnalysis
		if sa == nil {
			continue
		}
		side := DominantSide(sa.VolumeDominantSide)
		if side == "" {
			continue
		}
		e := ImbalanceEntry{
			Symbol:                 s.Symbol,
			PChange:                s.PChange,
			FinalPrice:             s.FinalPrice,
			Side:                   side,
			VolumeImbalancePercent: sa.VolumeImbalancePercent,
			BidVolume:              sa.BidVolume,
			AskVolume:              sa.AskVolume,
			SpreadPercent:          sa.SpreadPercent,
		}
		strong := sa.VolumeImbalancePercent > StrongImbalanceThreshold
		if side == "BID" {
			bids = append(bids, e)
			if strong {
				sum.StrongBidDominant++
			}
		} else {
			asks = append(asks, e)
			if strong {
				sum.StrongAskDominant++
			}
		}
	}
	sum.TotalBidDominant = len(bids)
	sum.TotalAskDominant = len(asks)

	rank := func(list []ImbalanceEntry) []ImbalanceEntry {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].VolumeImbalancePercent != list[j].VolumeImbalancePercent {
				return list[i].VolumeImbalancePercent > list[j].VolumeImbalancePercent
			}
			return list[i].Symbol < list[j].Symbol
		})
		return truncate(list, ImbalanceTopN)
	}

	return ImbalanceResult{
		BidDominant: rank(bids),
		AskDominant: rank(asks),
		Summary:     sum,
	}
}
