package analysis

import (
	"sort"

	models "nse-pulse/database/models_pkg"
)

// Change sources, in fallback order
const (
	SourcePreopen = "preopen"
	SourceMaster  = "master"
	SourceNone    = "none"
)

// Constituent is one stock inside a reference group
type Constituent struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	CompanyName string  `json:"companyName" yaml:"companyName"`
	MarketCap   float64 `json:"marketCap" yaml:"marketCap"`
}

// Group is a reference sector or industry with its constituents
type Group struct {
	Name           string        `json:"name" yaml:"name"`
	StockCount     int           `json:"stockCount" yaml:"stockCount"`
	TotalMarketCap float64       `json:"totalMarketCap" yaml:"totalMarketCap"`
	Stocks         []Constituent `json:"stocks" yaml:"stocks"`
}

// ChangeSource resolves a stock's change and volume through the fallback chain:
// pre-open snapshot, then the master's last-known values, then zero.
type ChangeSource struct {
	preopen map[string]models.PreopenSecurity
	master  map[string]models.StockMaster
	asOf    string
}

// NewChangeSource indexes the pre-open securities and stock master by symbol.
// Either may be empty. Master values recorded after asOf (YYYY-MM-DD) are
// ignored; an empty asOf accepts all of them.
func NewChangeSource(preopen []models.PreopenSecurity, master []models.StockMaster, asOf string) *ChangeSource {
	cs := &ChangeSource{
		preopen: make(map[string]models.PreopenSecurity, len(preopen)),
		master:  make(map[string]models.StockMaster, len(master)),
		asOf:    asOf,
	}
	for _, s := range preopen {
		cs.preopen[s.Symbol] = s
	}
	for _, m := range master {
		cs.master[m.Symbol] = m
	}
	return cs
}

// HasPreopen reports whether any pre-open data backs this source
func (cs *ChangeSource) HasPreopen() bool {
	return cs != nil && len(cs.preopen) > 0
}

// Resolve returns the change, volume and the tier that answered
func (cs *ChangeSource) Resolve(symbol string) (change, volume float64, source string) {
	if cs == nil {
		return 0, 0, SourceNone
	}
	if s, ok := cs.preopen[symbol]; ok {
		return s.PChange, s.FinalQuantity, SourcePreopen
	}
	if m, ok := cs.master[symbol]; ok && m.LastPChange != nil && cs.knownBy(m.LastChangeDate) {
		return *m.LastPChange, m.LastVolume, SourceMaster
	}
	return 0, 0, SourceNone
}

func (cs *ChangeSource) knownBy(date string) bool {
	return cs.asOf == "" || date == "" || date <= cs.asOf
}

// Rollup aggregates breadth and volume for every group.
// Rows are ordered by ADR descending, then name.
func Rollup(groups []Group, cs *ChangeSource) []models.GroupRollup {
	rows := make([]models.GroupRollup, 0, len(groups))
	for _, g := range groups {
		row := models.GroupRollup{
			Name:           g.Name,
			StockCount:     len(g.Stocks),
			TotalMarketCap: g.TotalMarketCap,
			Stocks:         make([]models.StockChange, 0, len(g.Stocks)),
		}

		var changeTotal float64
		for _, c := range g.Stocks {
			change, volume, source := cs.Resolve(c.Symbol)
			switch {
			case change > 0:
				row.Advances++
			case change < 0:
				row.Declines++
			default:
				row.Unchanged++
			}
			row.TotalVolume += volume
			if source == SourcePreopen {
				row.PreopenVolume += volume
			}
			changeTotal += change
			if g.TotalMarketCap == 0 {
				row.TotalMarketCap += c.MarketCap
			}
			row.Stocks = append(row.Stocks, models.StockChange{
				Symbol:      c.Symbol,
				CompanyName: c.CompanyName,
				MarketCap:   c.MarketCap,
				Change:      change,
				Volume:      volume,
				Source:      source,
			})
		}

		if row.StockCount > 0 {
			row.AvgChange = Round2(changeTotal / float64(row.StockCount))
		}
		row.ADR = ADR(row.Advances, row.Declines)

		sort.SliceStable(row.Stocks, func(i, j int) bool {
			return row.Stocks[i].Change > row.Stocks[j].Change
		})
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ADR != rows[j].ADR {
			return rows[i].ADR > rows[j].ADR
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
