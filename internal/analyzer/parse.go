package analyzer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// flexNumber decodes a JSON number, a numeric string or null.
// Anything else, including "NaN" and "Infinity", leaves it unset rather than
// failing the whole response.
type flexNumber struct {
	value *float64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.value = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "g"))
		if parsed, err := strconv.ParseFloat(s, 64); err == nil && finite(parsed) {
			n.value = &parsed
		}
	}
	return nil
}

type rawNutrition struct {
	Calories flexNumber `json:"calories"`
	Protein  flexNumber `json:"protein"`
	Carbs    flexNumber `json:"carbs"`
	Fats     flexNumber `json:"fats"`
	Fat      flexNumber `json:"fat"`
}

type rawItem struct {
	NormalizedTitle string       `json:"normalized_title"`
	Title           string       `json:"title"`
	Nutrition       rawNutrition `json:"nutrition"`
	ConfidenceScore flexNumber   `json:"confidence_score"`
	MealType        string       `json:"meal_type"`
	Notes           string       `json:"notes"`
}

type rawFoodResponse struct {
	MealType string     `json:"meal_type"`
	Items    *[]rawItem `json:"items"`
	Notes    string     `json:"notes"`
}

// parseFoodResponse decodes the provider's food analysis content.
// A response without an items array is malformed; an empty array is zero items.
func parseFoodResponse(content string) ([]nutrition.FoodItemAnalysis, error) {
	obj, ok := extractJSONObject(content)
	if !ok {
		return nil, errors.NewMalformedResponse("response contains no JSON object")
	}

	var raw rawFoodResponse
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, errors.NewMalformedResponse("response JSON does not match the food analysis shape")
	}
	if raw.Items == nil {
		return nil, errors.NewMalformedResponse("response has no items array")
	}

	mealType, _ := nutrition.ParseMealType(raw.MealType)

	items := make([]nutrition.FoodItemAnalysis, 0, len(*raw.Items))
	for _, it := range *raw.Items {
		title := it.NormalizedTitle
		if strings.TrimSpace(title) == "" {
			title = it.Title
		}

		fat := it.Nutrition.Fats.value
		if fat == nil {
			fat = it.Nutrition.Fat.value
		}

		analysis := nutrition.FoodItemAnalysis{
			Title: title,
			Macros: nutrition.Macros{
				Calories: nonNegative(it.Nutrition.Calories.value),
				Protein:  nonNegative(it.Nutrition.Protein.value),
				Carbs:    nonNegative(it.Nutrition.Carbs.value),
				Fat:      nonNegative(fat),
			},
			Confidence: clampConfidence(it.ConfidenceScore.value),
			MealType:   mealType,
			Notes:      strings.TrimSpace(it.Notes),
		}
		if mt, ok := nutrition.ParseMealType(it.MealType); ok {
			analysis.MealType = mt
		}
		items = append(items, analysis)
	}
	return items, nil
}

// extractJSONObject strips markdown code fences and returns the text between the
// first '{' and the last '}'.
func extractJSONObject(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 || !finite(*v) {
		return nil
	}
	return v
}

func clampConfidence(v *float64) float64 {
	switch {
	case v == nil, math.IsNaN(*v):
		return 0
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}
