package analysis

import (
	models "nse-pulse/database/models_pkg"
)

// PreopenStats is the breadth of a pre-open snapshot, always derived from its securities
type PreopenStats struct {
	TotalStocks   int     `json:"totalStocks"`
	Advances      int     `json:"advances"`
	Declines      int     `json:"declines"`
	Unchanged     int     `json:"unchanged"`
	TotalVolume   float64 `json:"totalVolume"`
	TotalTurnover float64 `json:"totalTurnover"`
	ADR           float64 `json:"adr"`
}

// PreopenBreadth counts advances, declines and unchanged by pChange sign and
// totals pre-open quantity and turnover.
func PreopenBreadth(securities []models.PreopenSecurity) PreopenStats {
	st := PreopenStats{TotalStocks: len(securities)}
	for _, s := range securities {
		switch {
		case s.PChange > 0:
			st.Advances++
		case s.PChange < 0:
			st.Declines++
		default:
			st.Unchanged++
		}
		st.TotalVolume += s.FinalQuantity
		st.TotalTurnover += s.TotalTurnover
	}
	st.ADR = ADR(st.Advances, st.Declines)
	return st
}

// MarketBreadthOf aggregates sector rollups into the market summary.
// Only sector rows are passed in, so each stock is counted once.
func MarketBreadthOf(sectors []models.GroupRollup) models.MarketBreadth {
	var m models.MarketBreadth
	for _, row := range sectors {
		m.TotalStocks += row.StockCount
		m.Advances += row.Advances
		m.Declines += row.Declines
		m.Unchanged += row.Unchanged
		m.TotalVolume += row.TotalVolume
		m.PreopenVolume += row.PreopenVolume
	}
	m.ADR = ADR(m.Advances, m.Declines)
	return m
}
