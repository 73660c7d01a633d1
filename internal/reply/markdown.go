package reply

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/nosh/internal/nutrition"
)

// DayMarkdown renders a day's entries and progress as a markdown report.
func DayMarkdown(date string, s nutrition.Summary, entries []nutrition.FoodLogEntry, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Nutrition for %s\n\n", date)

	if len(entries) == 0 {
		b.WriteString("Nothing logged on this day.\n")
	} else {
		b.WriteString("| Time | Food | Meal | Calories | Protein | Carbs | Fat |\n")
		b.WriteString("|---|---|---|---:|---:|---:|---:|\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				e.LoggedTime(loc).Format("15:04"),
				escapeCell(e.Title),
				string(e.MealType),
				Amount(nutrition.Calories, e.Macros.Calories),
				Amount(nutrition.Protein, e.Macros.Protein),
				Amount(nutrition.Carbs, e.Macros.Carbs),
				Amount(nutrition.Fat, e.Macros.Fat),
			)
		}
		fmt.Fprintf(&b, "| | **Total** | | **%s** | **%s** | **%s** | **%s** |\n",
			kcal(s.Totals.Calories), grams(s.Totals.Protein), grams(s.Totals.Carbs), grams(s.Totals.Fat))
	}

	if progress := s.Remaining(); len(progress) > 0 {
		b.WriteString("\n## Targets\n\n")
		for _, p := range progress {
			status := amount(p.Nutrient, p.Remaining) + " left"
			if p.Over {
				status = "**over target**"
			}
			fmt.Fprintf(&b, "- %s: %s of %s (%d%%), %s\n",
				label(p.Nutrient), amount(p.Nutrient, p.Consumed), amount(p.Nutrient, p.Target), p.Percent(), status)
		}
	}

	if s.Incomplete() {
		fmt.Fprintf(&b, "\n_%s %s missing some values; totals may be low._\n",
			plural(s.MissingDataCount, "item"), isAre(s.MissingDataCount))
	}
	return b.String()
}

// Amount formats an optional value with its unit; unknown values render as "?".
func Amount(n nutrition.Nutrient, v *float64) string {
	if v == nil {
		return "?"
	}
	return amount(n, *v)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
