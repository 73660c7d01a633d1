package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/nosh/internal/nutrition"
)

const foodInstructions = `Analyze the following food entry and provide a nutritional breakdown.
The entry may contain multiple food items or a single composite dish.

Guidelines:
1. A single dish or meal ("a salad with chicken and vegetables") is ONE item with combined values.
2. Clearly separate items ("a banana and a coffee") are separate items.
3. Use common sense to decide whether to combine or separate.
4. Use null for any value you cannot estimate. Never invent a timestamp.

Respond with JSON only, in this shape:
{
  "meal_type": "breakfast|lunch|dinner|snack|drink",
  "items": [
    {
      "normalized_title": "A clear, presentable title",
      "nutrition": {"calories": <number>, "protein": <grams>, "carbs": <grams>, "fats": <grams>},
      "confidence_score": <number between 0 and 1>,
      "notes": "uncertainties or details about this item"
    }
  ],
  "notes": "notes about the whole meal"
}

If the entry contains no food, return {"items": []}.`

const questionInstructions = `Answer the user's nutrition question for an SMS reply:
1. Start with a direct answer.
2. Include 1-2 insights from their food logs when relevant.
3. End with 1-2 specific, actionable suggestions.
4. Keep it short, plain text, no tables or complex formatting.
5. Round numbers to whole numbers where possible.`

// foodPrompt builds the user message for food analysis.
func foodPrompt(text string, history nutrition.History) string {
	var b strings.Builder
	b.WriteString(foodInstructions)
	if !history.Empty() {
		b.WriteString("\n\nFor consistency, the user's recent entries:\n")
		writeHistoryItems(&b, history, 20)
	}
	fmt.Fprintf(&b, "\n\nFood entry: %q\n", text)
	return b.String()
}

// questionPrompt builds the user message for question answering.
func questionPrompt(text string, profile nutrition.Profile, history nutrition.History) string {
	var b strings.Builder
	b.WriteString(questionInstructions)

	b.WriteString("\n\nUser profile:\n")
	for _, n := range nutrition.Nutrients {
		label := nutrientLabel(n)
		if v := profile.Targets.Get(n); v != nil {
			fmt.Fprintf(&b, "- Target %s: %s\n", label, formatAmount(n, *v))
		} else {
			fmt.Fprintf(&b, "- Target %s: not set\n", label)
		}
	}

	if history.Empty() {
		b.WriteString("\nNo food has been logged recently.\n")
	} else {
		fmt.Fprintf(&b, "\nRecent food log summary (last %d days with entries):\n", history.DaysAnalyzed)
		b.WriteString("Average daily intake:\n")
		for _, n := range nutrition.Nutrients {
			fmt.Fprintf(&b, "- %s: %s\n", nutrientLabel(n), formatAmount(n, history.Averages.Get(n)))
		}
		if len(history.MealTypes) > 0 {
			b.WriteString("\nMeal type distribution:\n")
			types := make([]string, 0, len(history.MealTypes))
			for mt := range history.MealTypes {
				types = append(types, string(mt))
			}
			sort.Strings(types)
			for _, mt := range types {
				fmt.Fprintf(&b, "- %s: %d entries\n", mt, history.MealTypes[nutrition.MealType(mt)])
			}
		}
		b.WriteString("\nDetailed food logs:\n")
		writeHistoryItems(&b, history, 40)
	}

	fmt.Fprintf(&b, "\nUser question: %q\n", text)
	return b.String()
}

// writeHistoryItems lists history days, most recent first, up to limit items.
func writeHistoryItems(b *strings.Builder, history nutrition.History, limit int) {
	written := 0
	for _, day := range history.Days {
		fmt.Fprintf(b, "\n%s (total %s, %s protein):\n", day.Date,
			formatAmount(nutrition.Calories, day.Totals.Calories),
			formatAmount(nutrition.Protein, day.Totals.Protein))
		for _, it := range day.Items {
			if written >= limit {
				return
			}
			fmt.Fprintf(b, "- %s", it.Title)
			if it.MealType != "" {
				fmt.Fprintf(b, " (%s)", it.MealType)
			}
			if v := it.Macros.Calories; v != nil {
				fmt.Fprintf(b, ": %s", formatAmount(nutrition.Calories, *v))
			}
			b.WriteString("\n")
			written++
		}
	}
}

func nutrientLabel(n nutrition.Nutrient) string {
	switch n {
	case nutrition.Calories:
		return "Calories"
	case nutrition.Protein:
		return "Protein"
	case nutrition.Carbs:
		return "Carbs"
	case nutrition.Fat:
		return "Fats"
	}
	return string(n)
}

func formatAmount(n nutrition.Nutrient, v float64) string {
	if n == nutrition.Calories {
		return fmt.Sprintf("%.0f kcal", v)
	}
	return fmt.Sprintf("%.1f%s", v, n.Unit())
}
