package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// newTestClient returns a Client pointed at a test server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Analyzer
	cfg.APIURL = srv.URL
	cfg.APIKey = "test-key"
	return NewClient(cfg)
}

// completion writes a chat completions envelope with content.
func completion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func TestAnalyzeFood_HappyPath(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		completion(w, `{
			"meal_type": "lunch",
			"items": [
				{"normalized_title": "Grilled Chicken Breast", "nutrition": {"calories": 165, "protein": 31, "carbs": 0, "fats": 3.6}, "confidence_score": 0.9},
				{"normalized_title": "Brown Rice", "nutrition": {"calories": 216, "protein": 5, "carbs": 45, "fats": null}, "confidence_score": 0.8, "meal_type": "dinner"}
			]
		}`)
	})

	items, err := client.AnalyzeFood(context.Background(), "grilled chicken breast and a cup of brown rice", nutrition.History{})
	if err != nil {
		t.Fatalf("AnalyzeFood failed: %v", err)
	}

	if got.Temperature != 0.3 || got.MaxTokens != 500 || got.Model == "" {
		t.Errorf("request = model %q temp %v max_tokens %d", got.Model, got.Temperature, got.MaxTokens)
	}
	if !strings.Contains(got.Messages[1].Content, "brown rice") {
		t.Errorf("user prompt missing food text: %q", got.Messages[1].Content)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Title != "Grilled Chicken Breast" || *items[0].Macros.Protein != 31 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].MealType != nutrition.MealLunch {
		t.Errorf("items[0].MealType = %q, want lunch (from response)", items[0].MealType)
	}
	if items[1].Macros.Fat != nil {
		t.Errorf("items[1].Fat = %v, want nil", *items[1].Macros.Fat)
	}
	if items[1].MealType != nutrition.MealDinner {
		t.Errorf("items[1].MealType = %q, want dinner (item override)", items[1].MealType)
	}
}

func TestAnalyzeFood_CodeFenceAndProse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		completion(w, "```json\n{\"items\": [{\"normalized_title\": \"Banana\", \"nutrition\": {\"calories\": \"105\"}, \"confidence_score\": 1.4}]}\n```")
	})

	items, err := client.AnalyzeFood(context.Background(), "a banana", nutrition.History{})
	if err != nil {
		t.Fatalf("AnalyzeFood failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Macros.Calories == nil || *items[0].Macros.Calories != 105 {
		t.Errorf("calories = %v, want 105 parsed from string", items[0].Macros.Calories)
	}
	if items[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", items[0].Confidence)
	}
}

func TestAnalyzeFood_EmptyItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		completion(w, `{"items": []}`)
	})

	items, err := client.AnalyzeFood(context.Background(), "hello there", nutrition.History{})
	if err != nil {
		t.Fatalf("AnalyzeFood failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestAnalyzeFood_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    errors.ErrorCode
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			code: errors.ErrProviderUnavailable,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "12")
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			code: errors.ErrRateLimited,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad", http.StatusBadRequest)
			},
			code: errors.ErrMalformedResponse,
		},
		{
			name: "envelope not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>oops</html>")
			},
			code: errors.ErrMalformedResponse,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"choices": []}`)
			},
			code: errors.ErrMalformedResponse,
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(w, "   ")
			},
			code: errors.ErrMalformedResponse,
		},
		{
			name: "content not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(w, "I think that was about 300 calories.")
			},
			code: errors.ErrMalformedResponse,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(w, `{"food": "banana"}`)
			},
			code: errors.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.AnalyzeFood(context.Background(), "toast", nutrition.History{})
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestAnalyzeFood_RetryAfterRecorded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.AnalyzeFood(context.Background(), "toast", nutrition.History{})
	ne, ok := errors.As(err)
	if !ok {
		t.Fatalf("error %v is not a NoshError", err)
	}
	if ne.Details["retry_after_seconds"] != 30 {
		t.Errorf("Details = %v, want retry_after_seconds 30", ne.Details)
	}
	if !errors.Retryable(err) {
		t.Error("rate limited error should be retryable")
	}
}

func TestAnalyzeFood_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.AnalyzeFood(ctx, "toast", nutrition.History{})
	if !errors.Is(err, errors.ErrProviderUnavailable) {
		t.Errorf("error = %v, want PROVIDER_UNAVAILABLE", err)
	}
}

func TestClient_NoAPIKey(t *testing.T) {
	client := NewClient(config.DefaultConfig().Analyzer)

	_, err := client.AnswerQuestion(context.Background(), "is rice healthy?", nutrition.Profile{}, nutrition.History{})
	if !errors.Is(err, errors.ErrProviderUnavailable) {
		t.Errorf("error = %v, want PROVIDER_UNAVAILABLE", err)
	}
}

func TestAnswerQuestion(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		completion(w, "  Yes, in moderation.  ")
	})

	cal := 2000.0
	profile := nutrition.Profile{Targets: nutrition.Macros{Calories: &cal}, Timezone: "UTC"}
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	hist := nutrition.BuildHistory([]nutrition.FoodLogEntry{
		{Title: "Pizza", MealType: nutrition.MealDinner, LoggedAt: day.Unix()},
	}, time.UTC)

	answer, err := client.AnswerQuestion(context.Background(), "is pizza ok?", profile, hist)
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	if answer != "Yes, in moderation." {
		t.Errorf("answer = %q", answer)
	}
	if got.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got.Temperature)
	}
	if got.ResponseFormat != nil {
		t.Error("question mode should not force a JSON response")
	}
	prompt := got.Messages[1].Content
	for _, want := range []string{"Target Calories: 2000 kcal", "Target Protein: not set", "Pizza", "dinner: 1 entries", "is pizza ok?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
