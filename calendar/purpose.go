package calendar

import "strings"

// Canonical event purposes
const (
	PurposeFinancialResults = "Financial Results"
	PurposeDividend         = "Dividend"
	PurposeBonus            = "Bonus"
	PurposeStockSplit       = "Stock Split"
	PurposeRights           = "Rights"
	PurposeBuyback          = "Buyback"
	PurposeFundRaising      = "Fund Raising"
	PurposeAGM              = "AGM"
	PurposeEGM              = "EGM"
	PurposeBoardMeeting     = "Board Meeting"
	PurposeOthers           = "Others"
)

// Purposes is the fixed purpose set, in display order
var Purposes = []string{
	PurposeFinancialResults,
	PurposeDividend,
	PurposeBonus,
	PurposeStockSplit,
	PurposeRights,
	PurposeBuyback,
	PurposeFundRaising,
	PurposeAGM,
	PurposeEGM,
	PurposeBoardMeeting,
	PurposeOthers,
}

// keyword rules are tried in order on the lower-cased purpose when it is not
// an exact (case-insensitive) match
var purposeRules = []struct {
	words   []string
	purpose string
}{
	{[]string{"fund raising", "fund raise", "raising of funds", "qip", "preferential issue"}, PurposeFundRaising},
	{[]string{"stock split", "sub-division", "subdivision", "split"}, PurposeStockSplit},
	{[]string{"buyback", "buy back", "buy-back"}, PurposeBuyback},
	{[]string{"bonus"}, PurposeBonus},
	{[]string{"rights"}, PurposeRights},
	{[]string{"dividend"}, PurposeDividend},
	{[]string{"financial result", "results", "result"}, PurposeFinancialResults},
	{[]string{"annual general meeting"}, PurposeAGM},
	{[]string{"extra ordinary general meeting", "extraordinary general meeting"}, PurposeEGM},
	{[]string{"board meeting"}, PurposeBoardMeeting},
}

// CanonicalPurpose maps one purpose fragment onto the fixed purpose set.
// Anything unrecognized becomes Others.
func CanonicalPurpose(raw string) string {
	p := strings.TrimSpace(raw)
	for _, c := range Purposes {
		if strings.EqualFold(p, c) {
			return c
		}
	}

	lower := strings.ToLower(p)
	for _, tok := range strings.Fields(lower) {
		switch strings.Trim(tok, ".,()") {
		case "agm":
			return PurposeAGM
		case "egm":
			return PurposeEGM
		}
	}
	for _, rule := range purposeRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.purpose
			}
		}
	}
	return PurposeOthers
}

// SplitPurposes splits a "/"-joined purpose into distinct canonical purposes,
// keeping first-seen order.
func SplitPurposes(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, "/") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c := CanonicalPurpose(part)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = append(out, PurposeOthers)
	}
	return out
}
