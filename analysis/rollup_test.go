package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "nse-pulse/database/models_pkg"
)

func ptr(f float64) *float64 { return &f }

func TestRollupFallbackChain(t *testing.T) {
	groups := []Group{
		{Name: "Banks", Stocks: []Constituent{{Symbol: "HDFC", MarketCap: 10}, {Symbol: "ICICI", MarketCap: 8}}},
		{Name: "IT", TotalMarketCap: 100, Stocks: []Constituent{{Symbol: "TCS"}, {Symbol: "INFY"}, {Symbol: "WIPRO"}}},
	}
	preopen := []models.PreopenSecurity{
		{Symbol: "TCS", PChange: 1.5, FinalQuantity: 100},
		{Symbol: "INFY", PChange: -0.5, FinalQuantity: 50},
	}
	master := []models.StockMaster{
		{Symbol: "WIPRO", LastPChange: ptr(2), LastVolume: 30},
		{Symbol: "HDFC"},
		{Symbol: "ICICI", LastPChange: ptr(-1), LastVolume: 20},
		{Symbol: "TCS", LastPChange: ptr(-9), LastVolume: 999},
	}

	cs := NewChangeSource(preopen, master, "")
	rows := Rollup(groups, cs)

	require.Len(t, rows, 2)
	it, banks := rows[0], rows[1]

	assert.Equal(t, "IT", it.Name)
	assert.Equal(t, 2, it.Advances)
	assert.Equal(t, 1, it.Declines)
	assert.Equal(t, 2.0, it.ADR)
	assert.Equal(t, 180.0, it.TotalVolume)
	assert.Equal(t, 150.0, it.PreopenVolume)
	assert.Equal(t, 1.0, it.AvgChange)
	assert.Equal(t, 100.0, it.TotalMarketCap)
	assert.Equal(t, "WIPRO", it.Stocks[0].Symbol)
	assert.Equal(t, SourceMaster, it.Stocks[0].Source)

	assert.Equal(t, "Banks", banks.Name)
	assert.Equal(t, 0, banks.Advances)
	assert.Equal(t, 1, banks.Declines)
	assert.Equal(t, 1, banks.Unchanged)
	assert.Equal(t, 0.0, banks.ADR)
	assert.Equal(t, 18.0, banks.TotalMarketCap, "summed from constituents when the group has none")

	tcs, vol, src := cs.Resolve("TCS")
	assert.Equal(t, 1.5, tcs, "pre-open wins over master")
	assert.Equal(t, 100.0, vol)
	assert.Equal(t, SourcePreopen, src)

	_, _, src = cs.Resolve("HDFC")
	assert.Equal(t, SourceNone, src, "master row without a last change falls through")
}

func TestRollupADRWithoutDeclines(t *testing.T) {
	groups := []Group{{Name: "Auto", Stocks: []Constituent{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}}}}
	preopen := []models.PreopenSecurity{{Symbol: "A", PChange: 1}, {Symbol: "B", PChange: 2}, {Symbol: "C", PChange: 3}}

	rows := Rollup(groups, NewChangeSource(preopen, nil, ""))

	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0].ADR)
}

func TestRollupOrdersByADRThenName(t *testing.T) {
	groups := []Group{
		{Name: "Zinc", Stocks: []Constituent{{Symbol: "Z"}}},
		{Name: "Alpha", Stocks: []Constituent{{Symbol: "Q"}}},
		{Name: "Metals", Stocks: []Constituent{{Symbol: "M"}}},
	}
	rows := Rollup(groups, NewChangeSource([]models.PreopenSecurity{{Symbol: "M", PChange: 2}}, nil, ""))

	names := []string{rows[0].Name, rows[1].Name, rows[2].Name}
	assert.Equal(t, []string{"Metals", "Alpha", "Zinc"}, names)
}

func TestMarketBreadthOf(t *testing.T) {
	sectors := []models.GroupRollup{
		{StockCount: 3, Advances: 2, Declines: 1, TotalVolume: 180, PreopenVolume: 150},
		{StockCount: 2, Declines: 1, Unchanged: 1, TotalVolume: 20},
	}

	m := MarketBreadthOf(sectors)

	assert.Equal(t, 5, m.TotalStocks)
	assert.Equal(t, 2, m.Advances)
	assert.Equal(t, 2, m.Declines)
	assert.Equal(t, 1, m.Unchanged)
	assert.Equal(t, 1.0, m.ADR)
	assert.Equal(t, 200.0, m.TotalVolume)
	assert.Equal(t, 150.0, m.PreopenVolume)

	noDeclines := MarketBreadthOf([]models.GroupRollup{{StockCount: 4, Advances: 4}})
	assert.Equal(t, 4.0, noDeclines.ADR)
}

func TestPreopenBreadth(t *testing.T) {
	st := PreopenBreadth([]models.PreopenSecurity{
		{Symbol: "A", PChange: 1, FinalQuantity: 10, TotalTurnover: 1000},
		{Symbol: "B", PChange: -2, FinalQuantity: 5, TotalTurnover: 500},
		{Symbol: "C", PChange: 0, FinalQuantity: 1},
	})

	assert.Equal(t, PreopenStats{
		TotalStocks: 3, Advances: 1, Declines: 1, Unchanged: 1,
		TotalVolume: 16, TotalTurnover: 1500, ADR: 1,
	}, st)
}

func TestChangeSourceIgnoresLaterMasterChanges(t *testing.T) {
	master := []models.StockMaster{
		{Symbol: "LATER", LastPChange: ptr(3), LastVolume: 10, LastChangeDate: "2025-01-06"},
		{Symbol: "SAME", LastPChange: ptr(-1), LastVolume: 5, LastChangeDate: "2025-01-02"},
		{Symbol: "UNDATED", LastPChange: ptr(0.5), LastVolume: 1},
	}

	cs := NewChangeSource(nil, master, "2025-01-02")

	_, _, src := cs.Resolve("LATER")
	assert.Equal(t, SourceNone, src, "change recorded after the analysis date")

	p, vol, src := cs.Resolve("SAME")
	assert.Equal(t, -1.0, p)
	assert.Equal(t, 5.0, vol)
	assert.Equal(t, SourceMaster, src)

	_, _, src = cs.Resolve("UNDATED")
	assert.Equal(t, SourceMaster, src)

	_, _, src = NewChangeSource(nil, master, "").Resolve("LATER")
	assert.Equal(t, SourceMaster, src)
}
