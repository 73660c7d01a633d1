package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/pipeline"
)

const testPhone = "+15550100900"

type fakeGateway struct {
	items []nutrition.FoodItemAnalysis
	err   error
}

func (g *fakeGateway) AnalyzeFood(ctx context.Context, text string, history nutrition.History) ([]nutrition.FoodItemAnalysis, error) {
	return g.items, g.err
}

func (g *fakeGateway) AnswerQuestion(ctx context.Context, text string, profile nutrition.Profile, history nutrition.History) (string, error) {
	return "Aim for a palm-sized portion of protein.", g.err
}

func f(v float64) *float64 { return &v }

// testSetup creates a temporary database, config and pipeline for testing.
func testSetup(t *testing.T, gw *fakeGateway) (*sql.DB, *config.Config, *pipeline.Pipeline) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	pipe := pipeline.New(database, cfg, gw, pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return database, cfg, pipe
}

func salad() *fakeGateway {
	return &fakeGateway{items: []nutrition.FoodItemAnalysis{
		{Title: "caesar salad", Macros: nutrition.Macros{Calories: f(350), Protein: f(10), Carbs: f(12), Fat: f(28)}, Confidence: 0.8, MealType: nutrition.MealLunch},
	}}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// logSalad sends a food message through the message tool and returns the entry ID.
func logSalad(t *testing.T, h *Handlers) string {
	t.Helper()
	result, err := h.HandleMessage(context.Background(), makeRequest(map[string]any{
		"from":    testPhone,
		"message": "caesar salad",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	entries := out["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("entries = %v, want 1", entries)
	}
	return entries[0].(map[string]any)["id"].(string)
}

func TestHandleMessage(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())
	h := NewHandlers(database, cfg, pipe)
	ctx := context.Background()

	tests := []struct {
		name           string
		args           map[string]any
		wantError      bool
		errorCode      string
		classification string
	}{
		{
			name:           "food entry",
			args:           map[string]any{"from": testPhone, "message": "caesar salad"},
			classification: "food_entry",
		},
		{
			name:           "question",
			args:           map[string]any{"from": testPhone, "message": "how much protein should I eat?"},
			classification: "question",
		},
		{
			name:      "missing from",
			args:      map[string]any{"message": "caesar salad"},
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"from": testPhone, "message": 42},
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleMessage(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			out := parseOutput(t, result)
			if out["classification"] != tt.classification {
				t.Errorf("classification = %v, want %s", out["classification"], tt.classification)
			}
			if out["reply"] == "" {
				t.Error("expected a reply")
			}
		})
	}
}

func TestHandleMessage_ProviderDownIsNotAnError(t *testing.T) {
	database, cfg, pipe := testSetup(t, &fakeGateway{err: errors.NewRateLimited(5)})
	h := NewHandlers(database, cfg, pipe)

	result, err := h.HandleMessage(context.Background(), makeRequest(map[string]any{"from": testPhone, "message": "pizza"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["degraded"] != true {
		t.Errorf("degraded = %v, want true", out["degraded"])
	}
}

func TestHandleDailySummary(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())
	h := NewHandlers(database, cfg, pipe)
	ctx := context.Background()
	logSalad(t, h)

	result, err := h.HandleDailySummary(ctx, makeRequest(map[string]any{"from": testPhone}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	summary := out["summary"].(map[string]any)
	if summary["entry_count"] != float64(1) {
		t.Errorf("entry_count = %v, want 1", summary["entry_count"])
	}
	totals := summary["totals"].(map[string]any)
	if totals["calories"] != float64(350) {
		t.Errorf("calories = %v, want 350", totals["calories"])
	}

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"unknown user", map[string]any{"from": "+15550100999"}, "NOT_FOUND"},
		{"bad date", map[string]any{"from": testPhone, "date": "tomorrow"}, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleDailySummary(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			assertErrorCode(t, result, tt.code)
		})
	}
}

func TestHandlePeriodSummary(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())
	h := NewHandlers(database, cfg, pipe)
	ctx := context.Background()
	logSalad(t, h)

	result, err := h.HandlePeriodSummary(ctx, makeRequest(map[string]any{
		"from": testPhone, "start": "2020-01-01", "end": "2020-01-07",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["days"] != float64(7) {
		t.Errorf("days = %v, want 7", out["days"])
	}

	result, _ = h.HandlePeriodSummary(ctx, makeRequest(map[string]any{
		"from": testPhone, "start": "2020-01-07", "end": "2020-01-01",
	}))
	assertErrorCode(t, result, "INVALID_INPUT")
}

func TestHandleEntriesAndDelete(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())
	h := NewHandlers(database, cfg, pipe)
	ctx := context.Background()
	id := logSalad(t, h)
	logSalad(t, h)

	result, err := h.HandleEntries(ctx, makeRequest(map[string]any{"from": testPhone, "limit": 1}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if items := out["items"].([]any); len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
	pagination := out["pagination"].(map[string]any)
	if pagination["has_more"] != true || pagination["total"] != float64(2) {
		t.Errorf("pagination = %v", pagination)
	}

	result, err = h.HandleDeleteEntry(ctx, makeRequest(map[string]any{"from": testPhone, "id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if out := parseOutput(t, result); out["deleted"] != true {
		t.Errorf("deleted = %v", out["deleted"])
	}

	result, _ = h.HandleDeleteEntry(ctx, makeRequest(map[string]any{"from": testPhone, "id": id}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleDeleteEntry(ctx, makeRequest(map[string]any{"from": testPhone}))
	assertErrorCode(t, result, "INVALID_INPUT")
}

func TestHandleSetTargets(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())
	h := NewHandlers(database, cfg, pipe)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "set calories and zone",
			args: map[string]any{"from": testPhone, "calories": 1800, "timezone": "Asia/Tokyo"},
		},
		{
			name: "clear calories",
			args: map[string]any{"from": testPhone, "clear": []any{"calories"}},
		},
		{
			name:      "unknown nutrient",
			args:      map[string]any{"from": testPhone, "clear": []any{"sugar"}},
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
		{
			name:      "negative target",
			args:      map[string]any{"from": testPhone, "protein": -5},
			wantError: true,
			errorCode: "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSetTargets(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}

	result, _ := h.HandleDailySummary(ctx, makeRequest(map[string]any{"from": testPhone}))
	out := parseOutput(t, result)
	if out["timezone"] != "Asia/Tokyo" {
		t.Errorf("timezone = %v, want Asia/Tokyo", out["timezone"])
	}
	if progress, _ := out["progress"].([]any); len(progress) != 0 {
		t.Errorf("progress = %v, want none after clearing calories", progress)
	}
}

func TestServerRegistration(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())

	s := NewServer(database, cfg, pipe, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"nutrition_message",
		"nutrition_daily_summary",
		"nutrition_period_summary",
		"nutrition_entries",
		"nutrition_set_targets",
		"nutrition_delete_entry",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())

	cfg.DisabledTools = []string{"nutrition_delete_entry", "nutrition_set_targets", "nutrition_delete_entry"}
	s := NewServer(database, cfg, pipe, "test")
	tools := s.ListTools()

	if len(tools) != 4 {
		t.Errorf("registered tool count = %d, want 4", len(tools))
	}
	for _, name := range []string{"nutrition_delete_entry", "nutrition_set_targets"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, pipe := testSetup(t, salad())

	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, pipe, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"nutrition_message", "nutrition_entries"}, 0},
		{"one unknown", []string{"nutrition_message", "capsule_store"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	for _, err := range []error{
		errors.NewInternal(fmt.Errorf("open /tmp/secret.db: permission denied")),
		errors.NewPersistenceFailure("insert entry", fmt.Errorf("constraint failed: CHECK(calories >= 0)")),
		fmt.Errorf("plain error"),
	} {
		r := errorResult(err)
		if !r.IsError {
			t.Fatal("expected IsError=true")
		}
		errObj := errorObject(t, r)
		if errObj["message"] != "an internal error occurred" {
			t.Errorf("message = %v, want generic message", errObj["message"])
		}
		if _, ok := errObj["details"]; ok {
			t.Errorf("expected details to be omitted for %v", err)
		}
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("lookup: %w", errors.NewNotFound("user", "+1555"))))

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_RetryableFlag(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewRateLimited(30)))
	if errObj["retryable"] != true {
		t.Errorf("retryable = %v, want true", errObj["retryable"])
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Errorf("expected error result, got success: %v", extractErrorMessage(result))
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
