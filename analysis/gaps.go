package analysis

import (
	"sort"

	models "nse-pulse/database/models_pkg"
)

// Gap band thresholds in percent
const (
	StrongGapThreshold   = 3.0
	ModerateGapThreshold = 1.0

	// DefaultGapLimit is the per-bucket limit of the gap endpoint
	DefaultGapLimit = 10
	// NewsGapLimit is the per-bucket limit used by the morning news flow
	NewsGapLimit = 7
)

// GapCounts are full bucket sizes, taken before truncation
type GapCounts struct {
	StrongUp     int `json:"strongUp"`
	ModerateUp   int `json:"moderateUp"`
	ModerateDown int `json:"moderateDown"`
	StrongDown   int `json:"strongDown"`
	Excluded     int `json:"excluded"`
}

// GapBuckets is the result of ClassifyGaps
type GapBuckets struct {
	StrongUp     []models.PreopenSecurity `json:"strongUp"`
	ModerateUp   []models.PreopenSecurity `json:"moderateUp"`
	ModerateDown []models.PreopenSecurity `json:"moderateDown"`
	StrongDown   []models.PreopenSecurity `json:"strongDown"`
	Counts       GapCounts                `json:"counts"`
	Limit        int                      `json:"limit"`
}

// GapBand names the bucket a gap falls into, "" for the dead zone
func GapBand(g float64) string {
	switch {
	case g > StrongGapThreshold:
		return "strongUp"
	case g >= ModerateGapThreshold:
		return "moderateUp"
	case g < -StrongGapThreshold:
		return "strongDown"
	case g <= -ModerateGapThreshold:
		return "moderateDown"
	default:
		return ""
	}
}

// ClassifyGaps buckets securities by their pre-open gap (pChange).
// Up buckets are ordered by gap descending and down buckets ascending, so the
// most extreme move comes first. Each bucket is truncated to limit; gaps in
// (-1, 1) land in no bucket.
func ClassifyGaps(securities []models.PreopenSecurity, limit int) GapBuckets {
	if limit <= 0 {
		limit = DefaultGapLimit
	}

	out := GapBuckets{
		StrongUp:     []models.PreopenSecurity{},
		ModerateUp:   []models.PreopenSecurity{},
		ModerateDown: []models.PreopenSecurity{},
		StrongDown:   []models.PreopenSecurity{},
		Limit:        limit,
	}

	for _, s := range securities {
		switch GapBand(s.PChange) {
		case "strongUp":
			out.StrongUp = append(out.StrongUp, s)
		case "moderateUp":
			out.ModerateUp = append(out.ModerateUp, s)
		case "moderateDown":
			out.ModerateDown = append(out.ModerateDown, s)
		case "strongDown":
			out.StrongDown = append(out.StrongDown, s)
		default:
			out.Counts.Excluded++
		}
	}

	out.Counts.StrongUp = len(out.StrongUp)
	out.Counts.ModerateUp = len(out.ModerateUp)
	out.Counts.ModerateDown = len(out.ModerateDown)
	out.Counts.StrongDown = len(out.StrongDown)

	sortByGap(out.StrongUp, true)
	sortByGap(out.ModerateUp, true)
	sortByGap(out.ModerateDown, false)
	sortByGap(out.StrongDown, false)

	out.StrongUp = truncate(out.StrongUp, limit)
	out.ModerateUp = truncate(out.ModerateUp, limit)
	out.ModerateDown = truncate(out.ModerateDown, limit)
	out.StrongDown = truncate(out.StrongDown, limit)
	return out
}

func sortByGap(list []models.PreopenSecurity, desc bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].PChange != list[j].PChange {
			if desc {
				return list[i].PChange > list[j].PChange
			}
			return list[i].PChange < list[j].PChange
		}
		return list[i].Symbol < list[j].Symbol
	})
}

func truncate[T any](list []T, n int) []T {
	if n >= 0 && len(list) > n {
		return list[:n]
	}
	return list
}
