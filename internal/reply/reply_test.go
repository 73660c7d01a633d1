package reply

import (
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

func f(v float64) *float64 { return &v }

var (
	dayStart = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd   = dayStart.AddDate(0, 0, 1)
	noon     = dayStart.Add(12 * time.Hour).Unix()
)

func entry(title string, m nutrition.Macros) nutrition.FoodLogEntry {
	return nutrition.FoodLogEntry{Title: title, Macros: m, Confidence: 0.9, LoggedAt: noon}
}

func TestFoodEntryReply_TwoItems(t *testing.T) {
	created := []nutrition.FoodLogEntry{
		entry("Eggs", nutrition.Macros{Calories: f(140), Protein: f(12), Carbs: f(1), Fat: f(10)}),
		entry("Toast", nutrition.Macros{Calories: f(80), Protein: f(2), Carbs: f(15), Fat: f(1)}),
	}
	today := nutrition.Summarize(created, nutrition.Macros{}, dayStart, dayEnd)

	got := FoodEntryReply(created, 0, today)

	for _, want := range []string{
		"Logged your meal!",
		"• Eggs: 140 kcal, 12g protein, 1g carbs, 10g fat",
		"• Toast: 80 kcal",
		"Total for this meal: 220 kcal, 14g protein",
		"Calories: 220 kcal",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("reply missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Recommendations") {
		t.Errorf("no recommendations expected without targets:\n%s", got)
	}
}

func TestFoodEntryReply_UnknownValuesAndCaveat(t *testing.T) {
	created := []nutrition.FoodLogEntry{
		entry("Mystery Stew", nutrition.Macros{Calories: f(300)}),
	}
	today := nutrition.Summarize(created, nutrition.Macros{}, dayStart, dayEnd)

	got := FoodEntryReply(created, 0, today)

	if !strings.Contains(got, "300 kcal, ?g protein, ?g carbs, ?g fat") {
		t.Errorf("unknown values should render as ?:\n%s", got)
	}
	if !strings.Contains(got, "1 item is missing some values") {
		t.Errorf("missing incomplete caveat:\n%s", got)
	}
	if strings.Contains(got, "Total for this meal") {
		t.Errorf("single item should not repeat a meal total:\n%s", got)
	}
}

func TestFoodEntryReply_TargetsAndRecommendations(t *testing.T) {
	created := []nutrition.FoodLogEntry{
		entry("Pasta", nutrition.Macros{Calories: f(600), Protein: f(20.25), Carbs: f(90), Fat: f(12)}),
	}
	targets := nutrition.Macros{Calories: f(2000), Protein: f(150), Fat: f(10)}
	today := nutrition.Summarize(created, targets, dayStart, dayEnd)

	got := FoodEntryReply(created, 0, today)

	for _, want := range []string{
		"Calories: 600 kcal/2000 kcal (30%), 1400 kcal left",
		"Protein: 20.3g/150g (13%), 129.8g left",
		"Carbs: 90g",
		"Fat: 12g/10g (120%), over target by 2g",
		"Recommendations:",
		"You still need 129.8g of protein.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("reply missing %q:\n%s", want, got)
		}
	}
}

func TestFoodEntryReply_SkippedItems(t *testing.T) {
	created := []nutrition.FoodLogEntry{entry("Apple", nutrition.Macros{Calories: f(95)})}
	today := nutrition.Summarize(created, nutrition.Macros{}, dayStart, dayEnd)

	got := FoodEntryReply(created, 2, today)
	if !strings.Contains(got, "Skipped 2 items") {
		t.Errorf("reply should mention skipped items:\n%s", got)
	}
}

func TestFoodEntryReply_NothingCreated(t *testing.T) {
	got := FoodEntryReply(nil, 1, nutrition.Summary{})
	if !strings.Contains(got, "nothing was logged") {
		t.Errorf("reply = %q, want nothing-logged message", got)
	}
	if !strings.Contains(got, "1 item had no recognizable name") {
		t.Errorf("reply should cite the skipped count: %q", got)
	}

	if got := NothingLogged(0); strings.Contains(got, "recognizable") {
		t.Errorf("NothingLogged(0) = %q, should not mention skipped items", got)
	}
}

func TestQuestionReply(t *testing.T) {
	entries := []nutrition.FoodLogEntry{
		entry("Oatmeal", nutrition.Macros{Calories: f(150), Protein: f(5)}),
	}

	tests := []struct {
		name    string
		summary nutrition.Summary
		want    string
	}{
		{
			name:    "with targets",
			summary: nutrition.Summarize(entries, nutrition.Macros{Calories: f(1800), Protein: f(90)}, dayStart, dayEnd),
			want:    "Today so far: 150 kcal of 1800 kcal, 5g protein of 90g across 1 item.",
		},
		{
			name:    "without targets",
			summary: nutrition.Summarize(entries, nutrition.Macros{}, dayStart, dayEnd),
			want:    "Today so far: 150 kcal, 5g protein across 1 item.",
		},
		{
			name:    "nothing logged with target",
			summary: nutrition.Summarize(nil, nutrition.Macros{Calories: f(2000)}, dayStart, dayEnd),
			want:    "You haven't logged anything today. Your target is 2000 kcal.",
		},
		{
			name:    "carbs and fat targets only",
			summary: nutrition.Summarize(entries, nutrition.Macros{Carbs: f(250), Fat: f(70)}, dayStart, dayEnd),
			want:    "Today so far: 150 kcal, 5g protein, 0g carbs of 250g, 0g fat of 70g across 1 item.",
		},
		{
			name:    "nothing logged with several targets",
			summary: nutrition.Summarize(nil, nutrition.Macros{Calories: f(2000), Protein: f(90), Fat: f(70)}, dayStart, dayEnd),
			want:    "You haven't logged anything today. Your targets are 2000 kcal, 90g protein and 70g fat.",
		},
		{
			name:    "nothing logged with carbs target",
			summary: nutrition.Summarize(nil, nutrition.Macros{Carbs: f(250)}, dayStart, dayEnd),
			want:    "You haven't logged anything today. Your target is 250g carbs.",
		},
		{
			name:    "nothing logged",
			summary: nutrition.Summarize(nil, nutrition.Macros{}, dayStart, dayEnd),
			want:    "You haven't logged anything today.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuestionReply("  Bananas are a good source of potassium. ", tt.summary)
			if !strings.HasPrefix(got, "Bananas are a good source of potassium.\n\n") {
				t.Errorf("answer not first: %q", got)
			}
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("QuestionReply() = %q, want suffix %q", got, tt.want)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	limited := Unavailable(errors.NewRateLimited(10))
	down := Unavailable(errors.NewProviderUnavailable(nil))
	if limited == down {
		t.Error("rate limited and unavailable should read differently")
	}
	if !strings.Contains(down, "try again") || !strings.Contains(limited, "try again") {
		t.Errorf("apologies should ask to try again: %q / %q", limited, down)
	}
}

func TestNumberFormatting(t *testing.T) {
	tests := []struct {
		n    nutrition.Nutrient
		v    float64
		want string
	}{
		{nutrition.Calories, 219.6, "220"},
		{nutrition.Calories, 0, "0"},
		{nutrition.Protein, 14, "14"},
		{nutrition.Protein, 3.6, "3.6"},
		{nutrition.Fat, 1.04, "1"},
		{nutrition.Carbs, 45.56, "45.6"},
	}
	for _, tt := range tests {
		if got := number(tt.n, tt.v); got != tt.want {
			t.Errorf("number(%s, %v) = %q, want %q", tt.n, tt.v, got, tt.want)
		}
	}
}

func TestDayMarkdown(t *testing.T) {
	entries := []nutrition.FoodLogEntry{
		entry("Salad | Dressing", nutrition.Macros{Calories: f(250), Protein: f(8), Carbs: f(12), Fat: f(18)}),
		entry("Soup", nutrition.Macros{Calories: f(120)}),
	}
	entries[0].MealType = nutrition.MealLunch
	s := nutrition.Summarize(entries, nutrition.Macros{Calories: f(2000)}, dayStart, dayEnd)

	got := DayMarkdown("2026-03-10", s, entries, time.UTC)

	for _, want := range []string{
		"# Nutrition for 2026-03-10",
		"| 12:00 | Salad \\| Dressing | lunch | 250 kcal | 8g | 12g | 18g |",
		"| 12:00 | Soup |  | 120 kcal | ? | ? | ? |",
		"**370 kcal**",
		"- Calories: 370 kcal of 2000 kcal (18%), 1630 kcal left",
		"1 item is missing some values",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q:\n%s", want, got)
		}
	}

	empty := DayMarkdown("2026-03-11", nutrition.Summary{}, nil, time.UTC)
	if !strings.Contains(empty, "Nothing logged on this day.") {
		t.Errorf("empty day markdown = %q", empty)
	}
}
