package nutrition

import (
	"sort"
	"time"
)

// HistoryItem is a single logged item inside a DayHistory.
type HistoryItem struct {
	Title    string   `json:"title"`
	MealType MealType `json:"meal_type,omitempty"`
	Macros   Macros   `json:"nutrition"`
}

// DayHistory is one calendar day of the recent history.
type DayHistory struct {
	Date   string        `json:"date"`
	Totals Totals        `json:"totals"`
	Items  []HistoryItem `json:"items"`
}

// History summarizes a user's recent entries for the analyzer's context.
type History struct {
	// Days holds days with at least one entry, most recent first.
	Days []DayHistory `json:"days"`

	// Averages is the mean daily total over Days.
	Averages Totals `json:"averages"`

	// MealTypes counts entries per meal type.
	MealTypes map[MealType]int `json:"meal_types,omitempty"`

	TotalEntries int `json:"total_entries"`
	DaysAnalyzed int `json:"days_analyzed"`
}

// Empty reports whether there is no history at all.
func (h History) Empty() bool {
	return h.TotalEntries == 0
}

// BuildHistory groups entries by calendar day in location.
func BuildHistory(entries []FoodLogEntry, location *time.Location) History {
	byDay := make(map[string]*DayHistory)
	h := History{MealTypes: make(map[MealType]int)}

	for _, e := range entries {
		key := DateAtLocation(e.LoggedTime(location), location).Format(DateLayout)
		day, ok := byDay[key]
		if !ok {
			day = &DayHistory{Date: key}
			byDay[key] = day
		}
		day.Totals = day.Totals.AddMacros(e.Macros)
		day.Items = append(day.Items, HistoryItem{
			Title:    e.Title,
			MealType: e.MealType,
			Macros:   e.Macros,
		})
		if e.MealType != "" {
			h.MealTypes[e.MealType]++
		}
		h.TotalEntries++
	}

	var sum Totals
	for _, day := range byDay {
		h.Days = append(h.Days, *day)
		sum = sum.Add(day.Totals)
	}
	sort.Slice(h.Days, func(i, j int) bool { return h.Days[i].Date > h.Days[j].Date })

	h.DaysAnalyzed = len(h.Days)
	if h.DaysAnalyzed > 0 {
		d := float64(h.DaysAnalyzed)
		h.Averages = Totals{
			Calories: sum.Calories / d,
			Protein:  sum.Protein / d,
			Carbs:    sum.Carbs / d,
			Fat:      sum.Fat / d,
		}
	}
	return h
}
