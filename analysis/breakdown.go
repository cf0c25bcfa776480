package analysis

import (
	"errors"
	"sort"

	models "nse-pulse/database/models_pkg"
)

// Taxonomy levels accepted by Breakdown
const (
	LevelSector        = "sector"
	LevelIndustry      = "industry"
	LevelBasicIndustry = "basicIndustry"

	Unclassified = "Unclassified"
	moversPerRow = 3
)

// ErrUnknownLevel is returned for a level outside LevelSector, LevelIndustry, LevelBasicIndustry
var ErrUnknownLevel = errors.New("unknown taxonomy level")

// Mover is a gainer or loser inside a breakdown row
type Mover struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	PChange     float64 `json:"pChange"`
	FinalPrice  float64 `json:"finalPrice"`
}

// BreakdownRow summarizes one taxonomy group of a pre-open snapshot
type BreakdownRow struct {
	Name          string  `json:"name"`
	StockCount    int     `json:"stockCount"`
	Advances      int     `json:"advances"`
	Declines      int     `json:"declines"`
	Unchanged     int     `json:"unchanged"`
	ADR           float64 `json:"adr"`
	AvgChange     float64 `json:"avgChange"`
	TotalQuantity float64 `json:"totalQuantity"`
	TotalTurnover float64 `json:"totalTurnover"`
	TopGainers    []Mover `json:"topGainers"`
	TopLosers     []Mover `json:"topLosers"`
}

// ValidLevel reports whether level can be passed to Breakdown
func ValidLevel(level string) bool {
	switch level {
	case LevelSector, LevelIndustry, LevelBasicIndustry:
		return true
	}
	return false
}

// levelOf returns the group name at level and the name one level above it
func levelOf(m models.StockMaster, level string) (name, parent string) {
	switch level {
	case LevelIndustry:
		return m.Industry, m.Sector
	case LevelBasicIndustry:
		return m.BasicIndustry, m.Industry
	default:
		return m.Sector, m.MacroEconomicClassification
	}
}

// Breakdown joins pre-open securities with the stock master and groups them at
// level. A non-empty parent keeps only stocks whose next-higher level equals it.
// Symbols missing from the master, or with an empty value at level, are grouped
// as Unclassified. Rows are ordered by average change descending.
func Breakdown(securities []models.PreopenSecurity, master []models.StockMaster, level, parent string) ([]BreakdownRow, error) {
	if level == "" {
		level = LevelSector
	}
	if !ValidLevel(level) {
		return nil, ErrUnknownLevel
	}

	bySymbol := make(map[string]models.StockMaster, len(master))
	for _, m := range master {
		bySymbol[m.Symbol] = m
	}

	type acc struct {
		row     BreakdownRow
		total   float64
		members []Mover
	}
	groups := make(map[string]*acc)

	for _, s := range securities {
		name, up := Unclassified, ""
		company := ""
		if m, ok := bySymbol[s.Symbol]; ok {
			company = m.CompanyName
			name, up = levelOf(m, level)
			if name == "" {
				name = Unclassified
			}
		}
		if parent != "" && up != parent {
			continue
		}

		a, ok := groups[name]
		if !ok {
			a = &acc{row: BreakdownRow{Name: name}}
			groups[name] = a
		}
		a.row.StockCount++
		switch {
		case s.PChange > 0:
			a.row.Advances++
		case s.PChange < 0:
			a.row.Declines++
		default:
			a.row.Unchanged++
		}
		a.total += s.PChange
		a.row.TotalQuantity += s.FinalQuantity
		a.row.TotalTurnover += s.TotalTurnover
		a.members = append(a.members, Mover{
			Symbol:      s.Symbol,
			CompanyName: company,
			PChange:     s.PChange,
			FinalPrice:  s.FinalPrice,
		})
	}

	rows := make([]BreakdownRow, 0, len(groups))
	for _, a := range groups {
		row := a.row
		row.ADR = ADR(row.Advances, row.Declines)
		row.AvgChange = Round2(a.total / float64(row.StockCount))
		row.TopGainers, row.TopLosers = topMovers(a.members)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvgChange != rows[j].AvgChange {
			return rows[i].AvgChange > rows[j].AvgChange
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

func topMovers(members []Mover) (gainers, losers []Mover) {
	gainers = []Mover{}
	losers = []Mover{}
	for _, m := range members {
		if m.PChange > 0 {
			gainers = append(gainers, m)
		} else if m.PChange < 0 {
			losers = append(losers, m)
		}
	}
	sort.Slice(gainers, func(i, j int) bool {
		if gainers[i].PChange != gainers[j].PChange {
			return gainers[i].PChange > gainers[j].PChange
		}
		return gainers[i].Symbol < gainers[j].Symbol
	})
	sort.Slice(losers, func(i, j int) bool {
		if losers[i].PChange != losers[j].PChange {
			return losers[i].PChange < losers[j].PChange
		}
		return losers[i].Symbol < losers[j].Symbol
	})
	return truncate(gainers, moversPerRow), truncate(losers, moversPerRow)
}
