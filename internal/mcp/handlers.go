package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/ops"
	"github.com/hpungsan/nosh/internal/pipeline"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *pipeline.Pipeline
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, pipe *pipeline.Pipeline) *Handlers {
	return &Handlers{db: db, cfg: cfg, pipeline: pipe}
}

// Request types for each tool

// MessageRequest represents the arguments for nutrition_message.
type MessageRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// DailySummaryRequest represents the arguments for nutrition_daily_summary.
type DailySummaryRequest struct {
	From string `json:"from"`
	Date string `json:"date,omitempty"`
}

// PeriodSummaryRequest represents the arguments for nutrition_period_summary.
type PeriodSummaryRequest struct {
	From  string `json:"from"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// EntriesRequest represents the arguments for nutrition_entries.
type EntriesRequest struct {
	From   string `json:"from"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SetTargetsRequest represents the arguments for nutrition_set_targets.
type SetTargetsRequest struct {
	From     string   `json:"from"`
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Clear    []string `json:"clear,omitempty"`
	Timezone *string  `json:"timezone,omitempty"`
}

// DeleteEntryRequest represents the arguments for nutrition_delete_entry.
type DeleteEntryRequest struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Handler implementations

// HandleMessage runs a message through the pipeline.
func (h *Handlers) HandleMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MessageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.pipeline.Process(ctx, pipeline.Inbound{From: input.From, Body: input.Message})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDailySummary handles the daily summary tool call.
func (h *Handlers) HandleDailySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DailySummaryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SummarizeDay(ctx, h.db, ops.DaySummaryInput{
		Phone: input.From,
		Date:  input.Date,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePeriodSummary handles the period summary tool call.
func (h *Handlers) HandlePeriodSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PeriodSummaryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SummarizePeriod(ctx, h.db, ops.PeriodSummaryInput{
		Phone: input.From,
		Start: input.Start,
		End:   input.End,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEntries handles the entries tool call.
func (h *Handlers) HandleEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EntriesRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListEntries(ctx, h.db, ops.ListEntriesInput{
		Phone:  input.From,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSetTargets handles the set targets tool call.
func (h *Handlers) HandleSetTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetTargetsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	toClear := make([]nutrition.Nutrient, 0, len(input.Clear))
	for _, name := range input.Clear {
		n, ok := nutrition.ParseNutrient(name)
		if !ok {
			return errorResult(errors.NewInvalidInput("unknown nutrient: " + name)), nil
		}
		toClear = append(toClear, n)
	}

	result, err := ops.SetTargets(ctx, h.db, h.cfg, ops.SetTargetsInput{
		Phone:    input.From,
		Calories: input.Calories,
		Protein:  input.Protein,
		Carbs:    input.Carbs,
		Fat:      input.Fat,
		Clear:    toClear,
		Timezone: input.Timezone,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDeleteEntry handles the delete entry tool call.
func (h *Handlers) HandleDeleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteEntryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteEntry(ctx, h.db, ops.DeleteEntryInput{
		Phone: input.From,
		ID:    input.ID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal and persistence details are withheld; they can carry SQL text or paths.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if nErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    nErr.Code,
			"message": nErr.Message,
			"status":  nErr.Status,
		}
		switch nErr.Code {
		case errors.ErrInternal, errors.ErrPersistenceFailure:
			errorObj["message"] = "an internal error occurred"
		default:
			if nErr.Details != nil {
				errorObj["details"] = nErr.Details
			}
		}
		if errors.Retryable(nErr) {
			errorObj["retryable"] = true
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
