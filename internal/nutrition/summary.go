package nutrition

import (
	"math"
	"time"
)

// Summary aggregates a user's entries over the half-open range [Start, End).
// For a single calendar day this is the daily summary; for several days it
// is a period summary built with the same rule.
type Summary struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Totals sums every entry in range, unknown values counting as zero.
	Totals Totals `json:"totals"`

	// EntryCount is the number of entries in range.
	EntryCount int `json:"entry_count"`

	// MissingDataCount is the number of entries with at least one unknown value.
	MissingDataCount int `json:"missing_data_count"`

	// Targets are the user's daily targets at reporting time.
	Targets Macros `json:"targets"`
}

// Summarize aggregates the entries whose LoggedAt falls in [start, end).
// Entries outside the range are ignored, so callers may pass a superset.
func Summarize(entries []FoodLogEntry, targets Macros, start, end time.Time) Summary {
	s := Summary{Start: start, End: end, Targets: targets}
	lo, hi := start.Unix(), end.Unix()
	for _, e := range entries {
		if e.LoggedAt < lo || e.LoggedAt >= hi {
			continue
		}
		s.Totals = s.Totals.AddMacros(e.Macros)
		s.EntryCount++
		if !e.Macros.Complete() {
			s.MissingDataCount++
		}
	}
	return s
}

// Days returns the number of calendar days the summary spans.
func (s Summary) Days() int {
	if !s.End.After(s.Start) {
		return 0
	}
	// Round so DST transitions (23h/25h days) still count as one day.
	return int(math.Round(s.End.Sub(s.Start).Hours() / 24))
}

// Incomplete reports whether some totals are missing contributions.
func (s Summary) Incomplete() bool {
	return s.MissingDataCount > 0
}

// Progress compares consumption against a target for one nutrient.
type Progress struct {
	Nutrient  Nutrient `json:"nutrient"`
	Consumed  float64  `json:"consumed"`
	Target    float64  `json:"target"`
	Remaining float64  `json:"remaining"`
	Over      bool     `json:"over"`
}

// Percent returns consumption as a whole percentage of the target.
func (p Progress) Percent() int {
	if p.Target <= 0 {
		return 0
	}
	return int(p.Consumed / p.Target * 100)
}

// Remaining reports progress for every nutrient that has a target.
// Remaining is floored at zero; going past the target sets Over instead.
// For multi-day summaries the daily target is scaled by the number of days.
func (s Summary) Remaining() []Progress {
	days := s.Days()
	if days < 1 {
		days = 1
	}
	out := make([]Progress, 0, len(Nutrients))
	for _, n := range Nutrients {
		t := s.Targets.Get(n)
		if t == nil {
			continue
		}
		target := *t * float64(days)
		consumed := s.Totals.Get(n)
		p := Progress{Nutrient: n, Consumed: consumed, Target: target}
		if diff := target - consumed; diff >= 0 {
			p.Remaining = diff
		} else {
			p.Over = true
		}
		out = append(out, p)
	}
	return out
}

// ProgressFor returns the progress for n, if n has a target.
func (s Summary) ProgressFor(n Nutrient) (Progress, bool) {
	for _, p := range s.Remaining() {
		if p.Nutrient == n {
			return p, true
		}
	}
	return Progress{}, false
}
