package nutrition

import (
	"strings"
	"time"
)

// Nutrient identifies one of the tracked macronutrients.
type Nutrient string

const (
	Calories Nutrient = "calories"
	Protein  Nutrient = "protein"
	Carbs    Nutrient = "carbs"
	Fat      Nutrient = "fat"
)

// Nutrients lists every tracked nutrient in reporting order.
var Nutrients = []Nutrient{Calories, Protein, Carbs, Fat}

// ParseNutrient returns the nutrient named by s. "fats" is accepted for Fat.
func ParseNutrient(s string) (Nutrient, bool) {
	switch n := Nutrient(strings.ToLower(strings.TrimSpace(s))); n {
	case Calories, Protein, Carbs, Fat:
		return n, true
	case "fats":
		return Fat, true
	}
	return "", false
}

// Unit returns the display unit for a nutrient.
func (n Nutrient) Unit() string {
	if n == Calories {
		return "kcal"
	}
	return "g"
}

// Macros holds per-nutrient quantities. A nil field means unknown (for estimates)
// or unset (for targets).
type Macros struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// Get returns the value for n.
func (m Macros) Get(n Nutrient) *float64 {
	switch n {
	case Calories:
		return m.Calories
	case Protein:
		return m.Protein
	case Carbs:
		return m.Carbs
	case Fat:
		return m.Fat
	}
	return nil
}

// Set replaces the value for n.
func (m *Macros) Set(n Nutrient, v *float64) {
	switch n {
	case Calories:
		m.Calories = v
	case Protein:
		m.Protein = v
	case Carbs:
		m.Carbs = v
	case Fat:
		m.Fat = v
	}
}

// Any reports whether at least one nutrient is set.
func (m Macros) Any() bool {
	for _, n := range Nutrients {
		if m.Get(n) != nil {
			return true
		}
	}
	return false
}

// Complete reports whether every nutrient is set.
func (m Macros) Complete() bool {
	for _, n := range Nutrients {
		if m.Get(n) == nil {
			return false
		}
	}
	return true
}

// Totals holds summed nutrient quantities.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Get returns the total for n.
func (t Totals) Get(n Nutrient) float64 {
	switch n {
	case Calories:
		return t.Calories
	case Protein:
		return t.Protein
	case Carbs:
		return t.Carbs
	case Fat:
		return t.Fat
	}
	return 0
}

// AddMacros adds m to t, treating unknown values as zero.
func (t Totals) AddMacros(m Macros) Totals {
	return Totals{
		Calories: t.Calories + valueOrZero(m.Calories),
		Protein:  t.Protein + valueOrZero(m.Protein),
		Carbs:    t.Carbs + valueOrZero(m.Carbs),
		Fat:      t.Fat + valueOrZero(m.Fat),
	}
}

// Add returns the element-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Calories: t.Calories + o.Calories,
		Protein:  t.Protein + o.Protein,
		Carbs:    t.Carbs + o.Carbs,
		Fat:      t.Fat + o.Fat,
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// MealType is the analyzer's guess at which meal an item belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
	MealDrink     MealType = "drink"
)

// ParseMealType returns the canonical meal type for s.
// Unknown values yield ("", false).
func ParseMealType(s string) (MealType, bool) {
	switch mt := MealType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MealBreakfast, MealLunch, MealDinner, MealSnack, MealDrink:
		return mt, true
	}
	return "", false
}

// User is the owner of food log entries, keyed by phone number.
type User struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	Timezone  string `json:"timezone"`
	Targets   Macros `json:"targets"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Location returns the user's configured time zone, falling back to UTC
// when the zone is unset or unknown.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Profile is the user context handed to the analyzer in question mode.
type Profile struct {
	Targets  Macros `json:"targets"`
	Timezone string `json:"timezone"`
}

// ProfileOf extracts the analyzer-facing profile from a user.
func ProfileOf(u *User) Profile {
	return Profile{Targets: u.Targets, Timezone: u.Location().String()}
}

// FoodItemAnalysis is one analyzed food item as returned by the analyzer.
// It is never persisted directly.
type FoodItemAnalysis struct {
	Title      string   `json:"title"`
	Macros     Macros   `json:"nutrition"`
	Confidence float64  `json:"confidence"`
	MealType   MealType `json:"meal_type,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// FoodLogEntry is one persisted food item.
type FoodLogEntry struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	Title           string   `json:"title"`
	Macros          Macros   `json:"nutrition"`
	Confidence      float64  `json:"confidence"`
	MealType        MealType `json:"meal_type,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	LoggedAt        int64    `json:"logged_at"`
	SourceMessageID string   `json:"source_message_id"`
	CreatedAt       int64    `json:"created_at"`
}

// LoggedTime returns LoggedAt as a time.Time in loc.
func (e FoodLogEntry) LoggedTime(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(e.LoggedAt, 0).In(loc)
}
