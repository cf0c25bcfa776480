package helpers

import (
	"fmt"
	"math"
	"strings"
)

const crore = 1e7

// FormatINR formats an amount as Indian Rupees with lakh/crore grouping,
// e.g. 1234567.8 becomes "₹12,34,567.80".
func FormatINR(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	whole := int64(amount)
	paise := int64(math.Round((amount - float64(whole)) * 100))
	if paise == 100 {
		whole++
		paise = 0
	}

	out := "₹" + groupIndian(whole) + fmt.Sprintf(".%02d", paise)
	if negative {
		return "-" + out
	}
	return out
}

// FormatCrore renders large rupee amounts in crores, e.g. "₹1,234.56 Cr"
func FormatCrore(amount float64) string {
	cr := amount / crore
	negative := cr < 0
	cr = math.Abs(cr)
	whole := int64(cr)
	frac := int64(math.Round((cr - float64(whole)) * 100))
	if frac == 100 {
		whole++
		frac = 0
	}
	out := fmt.Sprintf("₹%s.%02d Cr", groupIndian(whole), frac)
	if negative {
		return "-" + out
	}
	return out
}

// FormatQuantity groups a share count the Indian way without decimals
func FormatQuantity(q float64) string {
	if q < 0 {
		return "-" + groupIndian(int64(math.Round(-q)))
	}
	return groupIndian(int64(math.Round(q)))
}

// groupIndian inserts separators after the last three digits, then every two
func groupIndian(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
