package news

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"nse-pulse/analysis"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/llm"
)

// Event types emitted by MorningAnalysis
const (
	EventProgress = "progress"
	EventItem     = "item"
	EventComplete = "complete"
	EventError    = "error"
)

// TopSectorCount is how many sectors get a sector leader item
const TopSectorCount = 3

// Event is one line of the morning analysis stream
type Event struct {
	Type     string      `json:"type"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
}

// MorningRequest starts a morning analysis. Limit is the per-bucket gap limit.
type MorningRequest struct {
	Date  string `json:"date"`
	Limit int    `json:"limit"`
}

// MorningSummary is the payload of the complete event
type MorningSummary struct {
	Date    string `json:"date"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"`
}

var bandLabels = map[string]string{
	"strongUp":     "strong gap-up",
	"moderateUp":   "moderate gap-up",
	"moderateDown": "moderate gap-down",
	"strongDown":   "strong gap-down",
}

// MorningAnalysis validates req and starts the analysis in a goroutine. The
// returned channel carries progress, stored items, and one final complete or
// error event, then closes. Cancelling ctx stops the producer before its next
// AI call.
func (s *Service) MorningAnalysis(ctx context.Context, req MorningRequest) (<-chan Event, error) {
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return nil, err
	}
	if s.ai == nil {
		return nil, llm.ErrDisabled
	}
	if req.Limit <= 0 {
		req.Limit = analysis.NewsGapLimit
	}
	if req.Limit > analysis.DefaultGapLimit*5 {
		return nil, database.NewValidationErrorWithValue("limit", fmt.Sprintf("must be at most %d", analysis.DefaultGapLimit*5), req.Limit)
	}

	out := make(chan Event, 8)
	r := &morningRun{svc: s, ctx: ctx, out: out, date: date, limit: req.Limit}
	go r.run()
	return out, nil
}

type morningRun struct {
	svc   *Service
	ctx   context.Context
	out   chan<- Event
	date  string
	limit int

	total   int
	done    int
	stored  int
	skipped int
}

type gapTask struct {
	sec  models.PreopenSecurity
	band string
}

func (r *morningRun) emit(ev Event) bool {
	select {
	case r.out <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *morningRun) percent() int {
	if r.total == 0 {
		return 0
	}
	// 100 is reserved for the complete event
	return r.done * 99 / r.total
}

func (r *morningRun) fail(err error) {
	log.Error().Err(err).Str("date", r.date).Msg("Morning analysis failed")
	r.emit(Event{Type: EventError, Progress: r.percent(), Message: err.Error()})
}

func (r *morningRun) run() {
	defer close(r.out)

	if !r.emit(Event{Type: EventProgress, Message: fmt.Sprintf("Loading pre-open data for %s", r.date)}) {
		return
	}
	snap, err := r.svc.preopen.Latest(r.ctx, r.date)
	if err != nil {
		r.fail(err)
		return
	}
	securities := []models.PreopenSecurity(snap.Securities)
	master, err := r.svc.master.All(r.ctx)
	if err != nil {
		r.fail(database.WrapDBError("MorningMaster", err))
		return
	}

	gaps := analysis.ClassifyGaps(securities, r.limit)
	var tasks []gapTask
	for _, bucket := range []struct {
		band string
		list []models.PreopenSecurity
	}{
		{"strongUp", gaps.StrongUp},
		{"moderateUp", gaps.ModerateUp},
		{"moderateDown", gaps.ModerateDown},
		{"strongDown", gaps.StrongDown},
	} {
		for _, sec := range bucket.list {
			tasks = append(tasks, gapTask{sec: sec, band: bucket.band})
		}
	}

	sectors := topSectors(securities, master, TopSectorCount)
	r.total = len(tasks) + len(sectors) + 1

	if !r.emit(Event{
		Type:     EventProgress,
		Progress: r.percent(),
		Message:  fmt.Sprintf("Analyzing %d gap stocks and %d sectors", len(tasks), len(sectors)),
	}) {
		return
	}

	for _, t := range tasks {
		prompt := llm.FormatGapReasonPrompt(t.sec, bandLabels[t.band], r.date)
		if !r.step(models.NewsGapAnalysis, prompt, t.sec.Symbol, "", t.sec.Symbol) {
			return
		}
	}

	for _, row := range sectors {
		prompt := llm.FormatSectorLeaderPrompt(row.Name, sectorSnapshot(row), r.date)
		if !r.step(models.NewsSectorLeader, prompt, "", row.Name, row.Name) {
			return
		}
	}

	if !r.step(models.NewsMarketAnalysis, llm.FormatMarketOverviewPrompt(r.overview(securities, gaps, sectors)), "", "", "market overview") {
		return
	}

	log.Info().
		Str("date", r.date).
		Int("stored", r.stored).
		Int("skipped", r.skipped).
		Msg("🌅 Morning analysis completed")
	r.emit(Event{
		Type:     EventComplete,
		Progress: 100,
		Message:  "Morning analysis completed",
		Data:     MorningSummary{Date: r.date, Stored: r.stored, Skipped: r.skipped},
	})
}

// step runs one AI call and stores its item. It returns false when the run
// must stop.
func (r *morningRun) step(kind models.NewsType, prompt, symbol, sector, label string) bool {
	if r.ctx.Err() != nil {
		return false
	}

	var item llm.NewsItem
	err := r.svc.ai.AnalyzeJSON(r.ctx, prompt, &item)
	r.done++
	switch {
	case errors.Is(err, llm.ErrDisabled):
		r.fail(err)
		return false
	case r.ctx.Err() != nil:
		return false
	case err != nil:
		r.skipped++
		log.Warn().Err(err).Str("type", string(kind)).Str("subject", label).Msg("Morning analysis step skipped")
		return r.emit(Event{Type: EventProgress, Progress: r.percent(), Message: fmt.Sprintf("Skipped %s: %v", label, err)})
	}

	n := toNews(kind, item, symbol, sector, r.date)
	if err := r.svc.repo.Save(r.ctx, &n); err != nil {
		r.fail(database.WrapDBError("SaveNews", err))
		return false
	}
	r.stored++
	return r.emit(Event{Type: EventItem, Progress: r.percent(), Message: fmt.Sprintf("Analyzed %s", label), Data: n})
}

func (r *morningRun) overview(securities []models.PreopenSecurity, gaps analysis.GapBuckets, sectors []analysis.BreakdownRow) llm.MarketOverview {
	stats := analysis.PreopenBreadth(securities)
	o := llm.MarketOverview{
		Date:          r.date,
		TotalStocks:   stats.TotalStocks,
		Advances:      stats.Advances,
		Declines:      stats.Declines,
		Unchanged:     stats.Unchanged,
		ADR:           stats.ADR,
		TotalTurnover: stats.TotalTurnover,
	}
	for _, s := range gaps.StrongUp {
		o.StrongUp = append(o.StrongUp, llm.Mover{Symbol: s.Symbol, Change: s.PChange})
	}
	for _, s := range gaps.StrongDown {
		o.StrongDown = append(o.StrongDown, llm.Mover{Symbol: s.Symbol, Change: s.PChange})
	}
	for _, row := range sectors {
		o.TopSectors = append(o.TopSectors, row.Name)
	}
	return o
}

// topSectors ranks sector breakdown rows by pre-open breadth (adr, then
// average change) and keeps the first n. Unclassified stocks are left out.
func topSectors(securities []models.PreopenSecurity, master []models.StockMaster, n int) []analysis.BreakdownRow {
	rows, err := analysis.Breakdown(securities, master, analysis.LevelSector, "")
	if err != nil {
		return nil
	}
	kept := rows[:0]
	for _, row := range rows {
		if row.Name != analysis.Unclassified {
			kept = append(kept, row)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].ADR != kept[j].ADR {
			return kept[i].ADR > kept[j].ADR
		}
		return kept[i].AvgChange > kept[j].AvgChange
	})
	if len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

func sectorSnapshot(row analysis.BreakdownRow) llm.SectorSnapshot {
	snap := llm.SectorSnapshot{
		Advances:  row.Advances,
		Declines:  row.Declines,
		Unchanged: row.Unchanged,
		ADR:       row.ADR,
		AvgChange: row.AvgChange,
	}
	for _, m := range row.TopGainers {
		snap.Leaders = append(snap.Leaders, llm.Mover{Symbol: m.Symbol, Change: m.PChange})
	}
	return snap
}
