package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// DayReport is a daily summary together with the entries behind it.
type DayReport struct {
	Date    string                   `json:"date"`
	Summary nutrition.Summary        `json:"summary"`
	Entries []nutrition.FoodLogEntry `json:"entries"`
}

// DailySummary aggregates the user's entries on date's calendar day in the
// user's time zone.
func DailySummary(ctx context.Context, database *sql.DB, user *nutrition.User, date time.Time) (nutrition.Summary, error) {
	report, err := DailyReport(ctx, database, user, date)
	if err != nil {
		return nutrition.Summary{}, err
	}
	return report.Summary, nil
}

// DailyReport is DailySummary that also returns the day's entries, oldest first.
func DailyReport(ctx context.Context, database *sql.DB, user *nutrition.User, date time.Time) (*DayReport, error) {
	loc := user.Location()
	start, end := nutrition.DayRange(date, loc)

	entries, err := db.QueryEntriesForRange(ctx, database, user.ID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	return &DayReport{
		Date:    start.Format(nutrition.DateLayout),
		Summary: nutrition.Summarize(entries, user.Targets, start, end),
		Entries: entries,
	}, nil
}

// PeriodSummary aggregates the user's entries over the inclusive calendar
// dates startDate..endDate in the user's time zone.
func PeriodSummary(ctx context.Context, database *sql.DB, user *nutrition.User, startDate, endDate time.Time) (nutrition.Summary, error) {
	loc := user.Location()
	start, end, err := nutrition.PeriodRange(startDate, endDate, loc)
	if err != nil {
		return nutrition.Summary{}, errors.NewInvalidInput(err.Error())
	}

	entries, err := db.QueryEntriesForRange(ctx, database, user.ID, start.Unix(), end.Unix())
	if err != nil {
		return nutrition.Summary{}, err
	}
	return nutrition.Summarize(entries, user.Targets, start, end), nil
}

// RecentHistory builds the analyzer's view of the last days calendar days,
// today included.
func RecentHistory(ctx context.Context, database *sql.DB, user *nutrition.User, now time.Time, days int) (nutrition.History, error) {
	if days < 1 {
		days = 1
	}
	loc := user.Location()
	today := nutrition.DateAtLocation(now, loc)
	start := today.AddDate(0, 0, -(days - 1))
	end := today.AddDate(0, 0, 1)

	entries, err := db.QueryEntriesForRange(ctx, database, user.ID, start.Unix(), end.Unix())
	if err != nil {
		return nutrition.History{}, err
	}
	return nutrition.BuildHistory(entries, loc), nil
}
