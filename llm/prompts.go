package llm

import (
	"fmt"
	"strings"

	"nse-pulse/database/models_pkg"
	"nse-pulse/helpers"
)

const (
	maxPromptStocks = 15
	maxPromptWords  = 120
)

// NewsItem is the shape the provider is asked to return for news and analysis items
type NewsItem struct {
	Symbol     string  `json:"symbol,omitempty"`
	Headline   string  `json:"headline"`
	Reason     string  `json:"reason,omitempty"`
	Details    string  `json:"details,omitempty"`
	Sentiment  string  `json:"sentiment,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

const newsItemSchema = `{"headline": string, "reason": string, "details": string, "sentiment": "POSITIVE"|"NEGATIVE"|"NEUTRAL", "confidence": number between 0 and 1, "source": string}`

// FormatNewsSearchPrompt asks for recent news on one NSE symbol as a JSON array
func FormatNewsSearchPrompt(symbol, query, date string) string {
	var sb strings.Builder
	sb.Grow(512)

	sb.WriteString(fmt.Sprintf("Find the most relevant recent news for the NSE-listed stock **%s**", symbol))
	if date != "" {
		sb.WriteString(fmt.Sprintf(" around %s", date))
	}
	sb.WriteString(".\n")
	if query != "" {
		sb.WriteString(fmt.Sprintf("Focus on: %s\n", query))
	}
	sb.WriteString("\nReturn a JSON array of at most 5 items, newest first, each shaped as:\n")
	sb.WriteString(newsItemSchema)
	sb.WriteString("\nReturn [] when nothing credible is found.")

	return sb.String()
}

// FormatGapReasonPrompt asks why one stock gapped at the pre-open
func FormatGapReasonPrompt(sec models.PreopenSecurity, band, date string) string {
	var sb strings.Builder
	sb.Grow(512)

	sb.WriteString(fmt.Sprintf("On %s the NSE pre-open session showed a %s gap for **%s**.\n", date, band, sec.Symbol))
	sb.WriteString(fmt.Sprintf("- Previous close: %s\n", helpers.FormatINR(sec.PreviousClose)))
	sb.WriteString(fmt.Sprintf("- Indicative open: %s (%+.2f%%)\n", helpers.FormatINR(sec.FinalPrice), sec.PChange))
	sb.WriteString(fmt.Sprintf("- Pre-open quantity: %s\n", helpers.FormatQuantity(sec.FinalQuantity)))
	if sec.TotalTurnover > 0 {
		sb.WriteString(fmt.Sprintf("- Turnover: %s\n", helpers.FormatCrore(sec.TotalTurnover)))
	}

	sb.WriteString("\nExplain the most likely reason for the gap (results, corporate action, block deal, sector news, global cues).\n")
	sb.WriteString("Reply with one JSON object shaped as:\n")
	sb.WriteString(newsItemSchema)
	sb.WriteString(fmt.Sprintf("\nKeep details under %d words.", maxPromptWords))

	return sb.String()
}

// FormatSectorLeaderPrompt asks for the narrative behind a sector's pre-open breadth
func FormatSectorLeaderPrompt(sector string, row SectorSnapshot, date string) string {
	var sb strings.Builder
	sb.Grow(1024)

	sb.WriteString(fmt.Sprintf("Sector **%s** on %s at the NSE pre-open:\n", sector, date))
	sb.WriteString(fmt.Sprintf("- Advances %d, declines %d, unchanged %d (ADR %.2f)\n", row.Advances, row.Declines, row.Unchanged, row.ADR))
	sb.WriteString(fmt.Sprintf("- Average change: %+.2f%%\n", row.AvgChange))
	if len(row.Leaders) > 0 {
		sb.WriteString("- Leaders:\n")
		for i, m := range row.Leaders {
			if i >= maxPromptStocks {
				break
			}
			sb.WriteString(fmt.Sprintf("  %d. %s %+.2f%%\n", i+1, m.Symbol, m.Change))
		}
	}

	sb.WriteString("\nName the stock leading this sector today and why. Reply with one JSON object shaped as:\n")
	sb.WriteString(`{"symbol": string, "headline": string, "reason": string, "details": string, "sentiment": "POSITIVE"|"NEGATIVE"|"NEUTRAL", "confidence": number between 0 and 1, "source": string}`)

	return sb.String()
}

// SectorSnapshot is the breadth summary a sector leader prompt is built from
type SectorSnapshot struct {
	Advances  int
	Declines  int
	Unchanged int
	ADR       float64
	AvgChange float64
	Leaders   []Mover
}

// Mover is one stock and its change
type Mover struct {
	Symbol string
	Change float64
}

// MarketOverview is the input to the market overview prompt
type MarketOverview struct {
	Date          string
	TotalStocks   int
	Advances      int
	Declines      int
	Unchanged     int
	ADR           float64
	TotalTurnover float64
	StrongUp      []Mover
	StrongDown    []Mover
	TopSectors    []string
}

// FormatMarketOverviewPrompt asks for the opening market narrative
func FormatMarketOverviewPrompt(m MarketOverview) string {
	var sb strings.Builder
	sb.Grow(1024 + (len(m.StrongUp)+len(m.StrongDown))*40)

	sb.WriteString(fmt.Sprintf("NSE pre-open summary for %s:\n", m.Date))
	sb.WriteString(fmt.Sprintf("- %d stocks: %d advancing, %d declining, %d unchanged (ADR %.2f)\n",
		m.TotalStocks, m.Advances, m.Declines, m.Unchanged, m.ADR))
	sb.WriteString(fmt.Sprintf("- Pre-open turnover: %s\n", helpers.FormatCrore(m.TotalTurnover)))

	writeMovers(&sb, "Strong gap ups", m.StrongUp)
	writeMovers(&sb, "Strong gap downs", m.StrongDown)
	if len(m.TopSectors) > 0 {
		sb.WriteString(fmt.Sprintf("- Strongest sectors: %s\n", strings.Join(m.TopSectors, ", ")))
	}

	sb.WriteString("\nWrite the market opening outlook for Indian equity traders. Reply with one JSON object shaped as:\n")
	sb.WriteString(newsItemSchema)
	sb.WriteString(fmt.Sprintf("\nKeep details under %d words.", maxPromptWords*2))

	return sb.String()
}

func writeMovers(sb *strings.Builder, title string, movers []Mover) {
	if len(movers) == 0 {
		return
	}
	parts := make([]string, 0, len(movers))
	for i, m := range movers {
		if i >= maxPromptStocks {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %+.2f%%", m.Symbol, m.Change))
	}
	sb.WriteString(fmt.Sprintf("- %s: %s\n", title, strings.Join(parts, ", ")))
}
