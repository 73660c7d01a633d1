// Package analyzer talks to the external AI provider that turns free-text food
// descriptions into structured nutrition estimates and answers nutrition questions.
//
// Every failure is reported as a *errors.NoshError with one of three codes:
// PROVIDER_UNAVAILABLE and RATE_LIMITED are retryable, MALFORMED_RESPONSE is not.
// The analyzer never persists anything.
package analyzer

import (
	"context"

	"github.com/hpungsan/nosh/internal/nutrition"
)

// Gateway is the narrow contract the pipeline depends on.
type Gateway interface {
	// AnalyzeFood extracts zero or more food items from text.
	AnalyzeFood(ctx context.Context, text string, history nutrition.History) ([]nutrition.FoodItemAnalysis, error)

	// AnswerQuestion returns a free-text answer informed by the user's targets and history.
	AnswerQuestion(ctx context.Context, text string, profile nutrition.Profile, history nutrition.History) (string, error)
}

var _ Gateway = (*Client)(nil)
