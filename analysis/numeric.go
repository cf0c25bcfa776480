// Package analysis holds the pure aggregation and classification engine:
// gap bucketing, delivery ranking, sector/industry rollups, taxonomy
// breakdowns and volume-imbalance ranking. Nothing here touches storage.
package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseNumeric coerces a loosely typed JSON value into a float64.
// Numbers, numeric strings ("1,234.50", " 12 ", "4.5%") and bools are
// accepted; anything else, including NaN and Inf, yields def.
func ParseNumeric(v interface{}, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		if s == "" || s == "-" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ADR is the advance/decline ratio. With no declines the advances count is
// returned as-is, so 5 advances and 0 declines rank the same as 10 and 2.
func ADR(advances, declines int) float64 {
	if declines > 0 {
		return float64(advances) / float64(declines)
	}
	return float64(advances)
}
