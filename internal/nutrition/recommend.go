package nutrition

import "fmt"

// Recommendations returns short suggestions based on what is left of today's targets.
// Nothing is suggested when the user has no calorie target.
func Recommendations(s Summary) []string {
	cal, ok := s.ProgressFor(Calories)
	if !ok {
		return nil
	}
	if cal.Over || cal.Remaining == 0 {
		return []string{"You've reached your daily calorie target. Consider lighter options for remaining meals."}
	}

	var recs []string
	if p, ok := s.ProgressFor(Protein); ok && p.Remaining > 0 {
		recs = append(recs, fmt.Sprintf("You still need %.1fg of protein. Consider adding lean protein sources.", p.Remaining))
	}
	if p, ok := s.ProgressFor(Carbs); ok && p.Remaining > 0 {
		recs = append(recs, fmt.Sprintf("You have %.1fg of carbs remaining. Good for energy before workouts.", p.Remaining))
	}
	if p, ok := s.ProgressFor(Fat); ok && p.Remaining > 0 {
		recs = append(recs, fmt.Sprintf("You can add %.1fg of healthy fats to your next meal.", p.Remaining))
	}
	return recs
}
