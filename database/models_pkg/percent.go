package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Percent is a percentage held as a number and written to JSON as a
// two-decimal string ("45.20"). Decoding accepts either form.
type Percent float64

// String formats the value with exactly two decimals.
func (p Percent) String() string {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(f).StringFixed(2)
}

// Float64 returns the numeric value.
func (p Percent) Float64() float64 {
	return float64(p)
}

// MarshalJSON implements json.Marshaler
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	f, _ := d.Float64()
	*p = Percent(f)
	return nil
}
