package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// BuildEntries turns analyzer output into entries ready to persist.
// Analyses whose title normalizes to empty are dropped and counted in skipped.
// Every entry is stamped with now, the server receipt time.
func BuildEntries(userID string, analyses []nutrition.FoodItemAnalysis, sourceMessageID string, now time.Time) (entries []nutrition.FoodLogEntry, skipped int) {
	entries = make([]nutrition.FoodLogEntry, 0, len(analyses))
	for _, a := range analyses {
		title := nutrition.NormalizeTitle(a.Title)
		if title == "" {
			skipped++
			continue
		}
		entries = append(entries, nutrition.FoodLogEntry{
			ID:              NewID(),
			UserID:          userID,
			Title:           title,
			Macros:          a.Macros,
			Confidence:      a.Confidence,
			MealType:        a.MealType,
			Notes:           a.Notes,
			LoggedAt:        now.Unix(),
			SourceMessageID: sourceMessageID,
			CreatedAt:       now.Unix(),
		})
	}
	return entries, skipped
}

// LogFood persists entries atomically. On error nothing is stored and the
// error is a PERSISTENCE_FAILURE.
func LogFood(ctx context.Context, database *sql.DB, entries []nutrition.FoodLogEntry) error {
	return db.InsertFoodLogEntries(ctx, database, entries)
}
