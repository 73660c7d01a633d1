package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// DaySummaryInput contains parameters for the SummarizeDay operation.
type DaySummaryInput struct {
	Phone string
	Date  string    // YYYY-MM-DD in the user's time zone; empty means today
	Now   time.Time // zero means time.Now()
}

// DaySummaryOutput contains the result of the SummarizeDay operation.
type DaySummaryOutput struct {
	Date            string                   `json:"date"`
	Timezone        string                   `json:"timezone"`
	Summary         nutrition.Summary        `json:"summary"`
	Progress        []nutrition.Progress     `json:"progress"`
	Recommendations []string                 `json:"recommendations,omitempty"`
	Entries         []nutrition.FoodLogEntry `json:"entries"`

	User *nutrition.User `json:"-"`
}

// SummarizeDay reports one calendar day for an existing user.
func SummarizeDay(ctx context.Context, database *sql.DB, input DaySummaryInput) (*DaySummaryOutput, error) {
	user, err := FindUser(ctx, database, input.Phone)
	if err != nil {
		return nil, err
	}

	date := input.Now
	if date.IsZero() {
		date = time.Now()
	}
	if s := strings.TrimSpace(input.Date); s != "" {
		date, err = nutrition.ParseDate(s, user.Location())
		if err != nil {
			return nil, errors.NewInvalidInput(err.Error())
		}
	}

	report, err := DailyReport(ctx, database, user, date)
	if err != nil {
		return nil, err
	}
	return &DaySummaryOutput{
		Date:            report.Date,
		Timezone:        user.Timezone,
		Summary:         report.Summary,
		Progress:        report.Summary.Remaining(),
		Recommendations: nutrition.Recommendations(report.Summary),
		Entries:         report.Entries,
		User:            user,
	}, nil
}

// PeriodSummaryInput contains parameters for the SummarizePeriod operation.
type PeriodSummaryInput struct {
	Phone string
	Start string // YYYY-MM-DD, inclusive
	End   string // YYYY-MM-DD, inclusive
}

// PeriodSummaryOutput contains the result of the SummarizePeriod operation.
type PeriodSummaryOutput struct {
	Start    string               `json:"start"`
	End      string               `json:"end"`
	Days     int                  `json:"days"`
	Timezone string               `json:"timezone"`
	Summary  nutrition.Summary    `json:"summary"`
	Progress []nutrition.Progress `json:"progress"`
}

// SummarizePeriod reports an inclusive range of calendar days for an existing user.
func SummarizePeriod(ctx context.Context, database *sql.DB, input PeriodSummaryInput) (*PeriodSummaryOutput, error) {
	if strings.TrimSpace(input.Start) == "" || strings.TrimSpace(input.End) == "" {
		return nil, errors.NewInvalidInput("start and end dates are required")
	}
	user, err := FindUser(ctx, database, input.Phone)
	if err != nil {
		return nil, err
	}
	loc := user.Location()

	start, err := nutrition.ParseDate(strings.TrimSpace(input.Start), loc)
	if err != nil {
		return nil, errors.NewInvalidInput(err.Error())
	}
	end, err := nutrition.ParseDate(strings.TrimSpace(input.End), loc)
	if err != nil {
		return nil, errors.NewInvalidInput(err.Error())
	}

	summary, err := PeriodSummary(ctx, database, user, start, end)
	if err != nil {
		return nil, err
	}
	return &PeriodSummaryOutput{
		Start:    start.Format(nutrition.DateLayout),
		End:      end.Format(nutrition.DateLayout),
		Days:     summary.Days(),
		Timezone: user.Timezone,
		Summary:  summary,
		Progress: summary.Remaining(),
	}, nil
}
