// Package reference holds the sector and industry constituent lists used by
// the intraday rollups. The data is immutable once loaded; Reload swaps in a
// fresh copy atomically so readers never see a half-built set.
package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"nse-pulse/analysis"
)

// Data is one loaded set of reference groups
type Data struct {
	Sectors    []analysis.Group `json:"sectors"`
	Industries []analysis.Group `json:"industries"`
	LoadedAt   time.Time        `json:"loadedAt"`
}

// Summary describes a loaded Data without the constituent lists
type Summary struct {
	Sectors    int       `json:"sectors"`
	Industries int       `json:"industries"`
	Stocks     int       `json:"stocks"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// Summary counts groups and distinct symbols
func (d *Data) Summary() Summary {
	symbols := make(map[string]struct{})
	for _, groups := range [][]analysis.Group{d.Sectors, d.Industries} {
		for _, g := range groups {
			for _, s := range g.Stocks {
				symbols[s.Symbol] = struct{}{}
			}
		}
	}
	return Summary{
		Sectors:    len(d.Sectors),
		Industries: len(d.Industries),
		Stocks:     len(symbols),
		LoadedAt:   d.LoadedAt,
	}
}

// Store serves the current Data
type Store struct {
	sectorFile   string
	industryFile string
	current      atomic.Pointer[Data]
}

// NewStore creates a store reading from the given files. Nothing is loaded
// until Reload is called; until then Current returns an empty Data.
func NewStore(sectorFile, industryFile string) *Store {
	s := &Store{sectorFile: sectorFile, industryFile: industryFile}
	s.current.Store(&Data{})
	return s
}

// NewStaticStore wraps already built data, mostly for tests
func NewStaticStore(d *Data) *Store {
	s := &Store{}
	s.current.Store(d)
	return s
}

// Current returns the active data set. Callers must not modify it.
func (s *Store) Current() *Data {
	return s.current.Load()
}

// Reload re-reads both files and swaps the result in. On error the previous
// data stays active.
func (s *Store) Reload() (Summary, error) {
	if s.sectorFile == "" && s.industryFile == "" {
		return s.Current().Summary(), fmt.Errorf("reference files are not configured")
	}

	var next Data
	var err error
	if s.sectorFile != "" {
		if next.Sectors, err = LoadGroups(s.sectorFile); err != nil {
			return s.Current().Summary(), fmt.Errorf("sectors: %w", err)
		}
	}
	if s.industryFile != "" {
		if next.Industries, err = LoadGroups(s.industryFile); err != nil {
			return s.Current().Summary(), fmt.Errorf("industries: %w", err)
		}
	}
	next.LoadedAt = time.Now()
	s.current.Store(&next)

	sum := next.Summary()
	log.Info().
		Int("sectors", sum.Sectors).
		Int("industries", sum.Industries).
		Int("stocks", sum.Stocks).
		Msg("📚 Reference data loaded")
	return sum, nil
}

// LoadGroups reads a group file. ".yaml" and ".yml" files are parsed as YAML,
// everything else as JSON. The document may be a list of groups or a mapping
// from group name to group.
func LoadGroups(path string) ([]analysis.Group, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	isYAML := ext == ".yaml" || ext == ".yml"

	var list []analysis.Group
	if err := unmarshal(raw, isYAML, &list); err != nil {
		var byName map[string]analysis.Group
		if err2 := unmarshal(raw, isYAML, &byName); err2 != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for name, g := range byName {
			if g.Name == "" {
				g.Name = name
			}
			list = append(list, g)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}

	for i := range list {
		normalize(&list[i])
	}
	return list, nil
}

func unmarshal(raw []byte, isYAML bool, v interface{}) error {
	if isYAML {
		return yaml.Unmarshal(raw, v)
	}
	return json.Unmarshal(raw, v)
}

// normalize fills counts the file left out and upper-cases symbols
func normalize(g *analysis.Group) {
	var capTotal float64
	for i := range g.Stocks {
		g.Stocks[i].Symbol = strings.ToUpper(strings.TrimSpace(g.Stocks[i].Symbol))
		capTotal += g.Stocks[i].MarketCap
	}
	if g.StockCount == 0 {
		g.StockCount = len(g.Stocks)
	}
	if g.TotalMarketCap == 0 {
		g.TotalMarketCap = capTotal
	}
}
