package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

const (
	foodSystemPrompt     = "You are a nutrition analysis expert. Provide accurate, detailed nutritional information for each food item in the specified JSON format. Respond with JSON only."
	questionSystemPrompt = "You are a friendly nutrition expert providing concise, SMS-friendly diet advice. Keep responses brief, mobile-friendly, and actionable."
)

// Client is a Gateway backed by an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    config.AnalyzerConfig
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for provider call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client for cfg.
func NewClient(cfg config.AnalyzerConfig, opts ...Option) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeFood implements Gateway.
func (c *Client) AnalyzeFood(ctx context.Context, text string, history nutrition.History) ([]nutrition.FoodItemAnalysis, error) {
	content, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: foodSystemPrompt},
			{Role: "user", Content: foodPrompt(text, history)},
		},
		Temperature:    c.cfg.FoodTemperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	return parseFoodResponse(content)
}

// AnswerQuestion implements Gateway.
func (c *Client) AnswerQuestion(ctx context.Context, text string, profile nutrition.Profile, history nutrition.History) (string, error) {
	content, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: questionSystemPrompt},
			{Role: "user", Content: questionPrompt(text, profile, history)},
		},
		Temperature: c.cfg.QuestionTemperature,
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// complete sends one chat completion and returns the trimmed content of the first choice.
func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.NewProviderUnavailable(stderrors.New("analyzer API key is not configured"))
	}
	body.Model = c.cfg.Model
	body.MaxTokens = c.cfg.MaxTokens

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "analyzer request failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", errors.NewProviderUnavailable(err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "analyzer response",
		"status", resp.StatusCode,
		"model", body.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", errors.NewRateLimited(retryAfterSeconds(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return "", errors.NewProviderUnavailable(fmt.Errorf("provider returned HTTP %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", errors.NewMalformedResponse(fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.NewProviderUnavailable(err)
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", errors.NewMalformedResponse("response envelope is not valid JSON")
	}
	if len(envelope.Choices) == 0 {
		return "", errors.NewMalformedResponse("response has no choices")
	}
	content := strings.TrimSpace(envelope.Choices[0].Message.Content)
	if content == "" {
		return "", errors.NewMalformedResponse("response content is empty")
	}
	return content, nil
}

// retryAfterSeconds parses a Retry-After header given in seconds or as an HTTP date.
func retryAfterSeconds(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Seconds() + 0.5)
		}
	}
	return 0
}
