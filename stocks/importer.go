package stocks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"nse-pulse/analysis"
	models "nse-pulse/database/models_pkg"
)

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")

// headerAliases maps normalized header cells to StockMaster fields
var headerAliases = map[string]string{
	"symbol":                      "symbol",
	"ticker":                      "symbol",
	"companyname":                 "companyName",
	"company":                     "companyName",
	"name":                        "companyName",
	"sector":                      "sector",
	"industry":                    "industry",
	"basicindustry":               "basicIndustry",
	"macroeconomicclassification": "macro",
	"macroeconomicsector":         "macro",
	"macro":                       "macro",
	"marketcap":                   "marketCap",
	"marketcapitalisation":        "marketCap",
	"marketcapitalization":        "marketCap",
	"freefloatmarketcap":          "freeFloatMarketCap",
	"ffmc":                        "freeFloatMarketCap",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	r := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "(", "", ")", "")
	return r.Replace(h)
}

// ParseFile reads a stock master sheet with a header row. The format is picked
// by the file extension. Rows without a symbol are skipped and counted.
func ParseFile(filename string, r io.Reader) ([]models.StockMaster, int, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	default:
		return nil, 0, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, 0, err
	}
	return mapRows(rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func mapRows(rows [][]string) ([]models.StockMaster, int, error) {
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("file is empty")
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	if _, ok := columns["symbol"]; !ok {
		return nil, 0, fmt.Errorf("header row has no symbol column")
	}

	cell := func(row []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]models.StockMaster, 0, len(rows)-1)
	seen := make(map[string]int)
	skipped := 0
	for _, row := range rows[1:] {
		symbol := strings.ToUpper(cell(row, "symbol"))
		if symbol == "" {
			skipped++
			continue
		}
		m := models.StockMaster{
			Symbol:                      symbol,
			CompanyName:                 cell(row, "companyName"),
			Sector:                      cell(row, "sector"),
			Industry:                    cell(row, "industry"),
			BasicIndustry:               cell(row, "basicIndustry"),
			MacroEconomicClassification: cell(row, "macro"),
			MarketCap:                   analysis.ParseNumeric(cell(row, "marketCap"), 0),
			FreeFloatMarketCap:          analysis.ParseNumeric(cell(row, "freeFloatMarketCap"), 0),
		}
		// a repeated symbol keeps the last row, as a batch upsert would
		if i, dup := seen[symbol]; dup {
			out[i] = m
			continue
		}
		seen[symbol] = len(out)
		out = append(out, m)
	}
	return out, skipped, nil
}
