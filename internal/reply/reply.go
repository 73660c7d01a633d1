// Package reply renders the user-facing text sent back over chat.
// Every function is pure string construction.
package reply

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// FoodEntryReply confirms logged items and reports today's progress.
// With nothing created it explains that nothing was logged.
func FoodEntryReply(created []nutrition.FoodLogEntry, skipped int, today nutrition.Summary) string {
	if len(created) == 0 {
		return NothingLogged(skipped)
	}

	var b strings.Builder
	b.WriteString("Logged your meal! Here's the breakdown:\n")

	var meal nutrition.Totals
	for _, e := range created {
		fmt.Fprintf(&b, "\n• %s: %s", e.Title, macroLine(e.Macros))
		if e.Notes != "" {
			fmt.Fprintf(&b, "\n  Note: %s", e.Notes)
		}
		meal = meal.AddMacros(e.Macros)
	}
	if skipped > 0 {
		fmt.Fprintf(&b, "\n(Skipped %s without a recognizable name.)", plural(skipped, "item"))
	}

	if len(created) > 1 {
		fmt.Fprintf(&b, "\n\nTotal for this meal: %s", totalsLine(meal))
	}

	b.WriteString("\n\n")
	b.WriteString(progressBlock(today))

	if recs := nutrition.Recommendations(today); len(recs) > 0 {
		b.WriteString("\n\nRecommendations:")
		for _, r := range recs {
			fmt.Fprintf(&b, "\n• %s", r)
		}
	}
	return b.String()
}

// NothingLogged explains that a food message produced no entries.
func NothingLogged(skipped int) string {
	msg := "I couldn't find any food to log in that message, so nothing was logged."
	if skipped > 0 {
		msg += fmt.Sprintf(" (%s had no recognizable name.)", plural(skipped, "item"))
	}
	return msg + ` Try describing what you ate, like "2 eggs and toast".`
}

// QuestionReply appends a one-line summary of today's intake to an answer.
func QuestionReply(answer string, recent nutrition.Summary) string {
	answer = strings.TrimSpace(answer)
	return answer + "\n\n" + contextLine(recent)
}

// Unavailable is the apology sent when the analysis provider could not be used.
func Unavailable(err error) string {
	if errors.Is(err, errors.ErrRateLimited) {
		return "I'm getting a lot of requests right now. Please try again in a minute."
	}
	return "Sorry, I couldn't reach the nutrition service just now. Please try again shortly."
}

// InvalidInput is sent for empty or unusable messages.
func InvalidInput() string {
	return `Send me what you ate (like "2 eggs and toast") or ask me a nutrition question.`
}

// contextLine sums up today's intake. Calories and protein always appear;
// every nutrient with a target is shown against it.
func contextLine(s nutrition.Summary) string {
	progress := s.Remaining()
	if s.EntryCount == 0 {
		if len(progress) == 0 {
			return "You haven't logged anything today."
		}
		targets := make([]string, len(progress))
		for i, p := range progress {
			targets[i] = quantity(p.Nutrient, p.Target)
		}
		noun := "target is"
		if len(targets) > 1 {
			noun = "targets are"
		}
		return fmt.Sprintf("You haven't logged anything today. Your %s %s.", noun, joinAnd(targets))
	}

	byNutrient := make(map[nutrition.Nutrient]nutrition.Progress, len(progress))
	for _, p := range progress {
		byNutrient[p.Nutrient] = p
	}

	var parts []string
	for _, n := range nutrition.Nutrients {
		p, hasTarget := byNutrient[n]
		if !hasTarget && n != nutrition.Calories && n != nutrition.Protein {
			continue
		}
		part := quantity(n, s.Totals.Get(n))
		if hasTarget {
			part += " of " + amount(n, p.Target)
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("Today so far: %s across %s.", strings.Join(parts, ", "), plural(s.EntryCount, "item"))
}

// quantity is an amount named by its nutrient: "150 kcal", "5g protein".
func quantity(n nutrition.Nutrient, v float64) string {
	if n == nutrition.Calories {
		return kcal(v)
	}
	return grams(v) + " " + strings.ToLower(label(n))
}

func joinAnd(items []string) string {
	if len(items) < 2 {
		return strings.Join(items, "")
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func progressBlock(s nutrition.Summary) string {
	var b strings.Builder
	b.WriteString("Today's progress:")

	progress := make(map[nutrition.Nutrient]nutrition.Progress)
	for _, p := range s.Remaining() {
		progress[p.Nutrient] = p
	}

	for _, n := range nutrition.Nutrients {
		consumed := s.Totals.Get(n)
		p, ok := progress[n]
		if !ok {
			fmt.Fprintf(&b, "\n%s: %s", label(n), amount(n, consumed))
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s/%s (%d%%)", label(n), amount(n, consumed), amount(n, p.Target), p.Percent())
		if p.Over {
			fmt.Fprintf(&b, ", over target by %s", amount(n, consumed-p.Target))
		} else {
			fmt.Fprintf(&b, ", %s left", amount(n, p.Remaining))
		}
	}

	if s.Incomplete() {
		fmt.Fprintf(&b, "\nNote: %s today %s missing some values, so totals may be low.",
			plural(s.MissingDataCount, "item"), isAre(s.MissingDataCount))
	}
	return b.String()
}

// macroLine renders one item's estimates; unknown values show as "?".
func macroLine(m nutrition.Macros) string {
	parts := make([]string, 0, len(nutrition.Nutrients))
	for _, n := range nutrition.Nutrients {
		v := m.Get(n)
		value := "?"
		if v != nil {
			value = number(n, *v)
		}
		if n == nutrition.Calories {
			parts = append(parts, value+" kcal")
		} else {
			parts = append(parts, value+"g "+strings.ToLower(label(n)))
		}
	}
	return strings.Join(parts, ", ")
}

func totalsLine(t nutrition.Totals) string {
	return fmt.Sprintf("%s, %s protein, %s carbs, %s fat",
		kcal(t.Calories), grams(t.Protein), grams(t.Carbs), grams(t.Fat))
}

func label(n nutrition.Nutrient) string {
	switch n {
	case nutrition.Calories:
		return "Calories"
	case nutrition.Protein:
		return "Protein"
	case nutrition.Carbs:
		return "Carbs"
	case nutrition.Fat:
		return "Fat"
	}
	return string(n)
}

func amount(n nutrition.Nutrient, v float64) string {
	if n == nutrition.Calories {
		return kcal(v)
	}
	return grams(v)
}

// number formats calories as whole kcal and grams to one decimal,
// dropping a trailing ".0".
func number(n nutrition.Nutrient, v float64) string {
	if n == nutrition.Calories {
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
	s := strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

func kcal(v float64) string {
	return number(nutrition.Calories, v) + " kcal"
}

func grams(v float64) string {
	return number(nutrition.Protein, v) + "g"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
