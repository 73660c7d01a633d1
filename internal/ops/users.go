package ops

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// ResolveUser returns the user for phone, creating it on first contact.
// New users get the configured default time zone and no targets.
func ResolveUser(ctx context.Context, database *sql.DB, cfg *config.Config, phone string, now time.Time) (*nutrition.User, error) {
	p, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	tz := "UTC"
	if cfg != nil && validTimezone(cfg.DefaultTimezone) {
		tz = cfg.DefaultTimezone
	}

	user, _, err := db.GetOrCreateUser(ctx, database, &nutrition.User{
		ID:        NewID(),
		Phone:     p,
		Timezone:  tz,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	})
	return user, err
}

// FindUser returns an existing user by phone without creating one.
func FindUser(ctx context.Context, database *sql.DB, phone string) (*nutrition.User, error) {
	p, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return db.GetUserByPhone(ctx, database, p)
}

// SetTargetsInput contains parameters for the SetTargets operation.
// Nil fields leave the current value unchanged; Clear unsets the named nutrients.
type SetTargetsInput struct {
	Phone    string
	Calories *float64
	Protein  *float64
	Carbs    *float64
	Fat      *float64
	Clear    []nutrition.Nutrient
	Timezone *string
}

// SetTargetsOutput contains the result of the SetTargets operation.
type SetTargetsOutput struct {
	User *nutrition.User `json:"user"`
}

// SetTargets updates a user's daily targets and time zone, creating the user
// if the phone number has not been seen before.
func SetTargets(ctx context.Context, database *sql.DB, cfg *config.Config, input SetTargetsInput) (*SetTargetsOutput, error) {
	updates := nutrition.Macros{
		Calories: input.Calories,
		Protein:  input.Protein,
		Carbs:    input.Carbs,
		Fat:      input.Fat,
	}
	for _, n := range nutrition.Nutrients {
		v := updates.Get(n)
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return nil, errors.NewInvalidInput(string(n) + " target must be a finite number")
		}
		if *v < 0 {
			return nil, errors.NewInvalidInput(string(n) + " target must be non-negative")
		}
	}
	if input.Timezone != nil && !validTimezone(*input.Timezone) {
		return nil, errors.NewInvalidInput("unknown time zone: " + *input.Timezone)
	}

	now := time.Now()
	user, err := ResolveUser(ctx, database, cfg, input.Phone, now)
	if err != nil {
		return nil, err
	}

	targets := user.Targets
	for _, n := range nutrition.Nutrients {
		if v := updates.Get(n); v != nil {
			targets.Set(n, v)
		}
	}
	for _, n := range input.Clear {
		targets.Set(n, nil)
	}

	if err := db.UpdateUserTargets(ctx, database, user.ID, targets, now.Unix()); err != nil {
		return nil, err
	}
	if input.Timezone != nil {
		if err := db.UpdateUserTimezone(ctx, database, user.ID, *input.Timezone, now.Unix()); err != nil {
			return nil, err
		}
	}

	updated, err := db.GetUserByPhone(ctx, database, user.Phone)
	if err != nil {
		return nil, err
	}
	return &SetTargetsOutput{User: updated}, nil
}
