// Package pipeline runs one inbound chat message through classification,
// analysis, persistence, aggregation and reply formatting.
//
// A Pipeline holds no per-message state and is safe for concurrent use.
// Messages from the same user may be processed concurrently; the storage
// layer keeps user creation and entry inserts consistent.
package pipeline

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/nosh/internal/analyzer"
	"github.com/hpungsan/nosh/internal/classify"
	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/ops"
	"github.com/hpungsan/nosh/internal/reply"
)

// State names a step a message passes through.
type State string

const (
	StateReceived   State = "received"
	StateClassified State = "classified"
	StateAnalyzing  State = "analyzing"
	StateAnswering  State = "answering"
	StateBuilt      State = "built"
	StateAggregated State = "aggregated"
	StateFormatted  State = "formatted"
	StateReplied    State = "replied"
)

// Inbound is a message as delivered by a chat channel.
type Inbound struct {
	From string
	Body string

	// ReceivedAt is the server receipt time. Zero means now.
	ReceivedAt time.Time
}

// Result describes what happened to one message.
type Result struct {
	States         []State                  `json:"states"`
	Classification string                   `json:"classification,omitempty"`
	Rule           string                   `json:"rule,omitempty"`
	MessageID      string                   `json:"message_id,omitempty"`
	UserID         string                   `json:"user_id,omitempty"`
	Entries        []nutrition.FoodLogEntry `json:"entries"`
	Skipped        int                      `json:"skipped"`
	Reply          string                   `json:"reply"`

	// Degraded is set when the analyzer could not be used and the reply is an apology.
	Degraded bool `json:"degraded,omitempty"`
}

func (r *Result) visit(s State) {
	r.States = append(r.States, s)
}

// Pipeline processes inbound messages.
type Pipeline struct {
	db      *sql.DB
	cfg     *config.Config
	gateway analyzer.Gateway
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock replaces time.Now for messages without a receipt time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithTimeout overrides the analyzer call timeout from config.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// New returns a Pipeline backed by database and gateway.
func New(database *sql.DB, cfg *config.Config, gateway analyzer.Gateway, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p := &Pipeline{
		db:      database,
		cfg:     cfg,
		gateway: gateway,
		logger:  slog.Default(),
		now:     time.Now,
		timeout: cfg.Analyzer.Timeout(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one message end to end and returns the reply to send.
//
// Analyzer failures never surface as errors: unavailability and rate limits
// produce an apology reply, and an unparseable food analysis logs nothing.
// Storage failures are returned as PERSISTENCE_FAILURE errors so the channel
// can report them.
func (p *Pipeline) Process(ctx context.Context, in Inbound) (*Result, error) {
	start := time.Now()
	res := &Result{Entries: []nutrition.FoodLogEntry{}}
	res.visit(StateReceived)

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = p.now()
	}

	body := nutrition.CollapseSpace(in.Body)
	if body == "" {
		res.Reply = reply.InvalidInput()
		res.visit(StateFormatted)
		res.visit(StateReplied)
		p.logResult(ctx, res, start, nil)
		return res, nil
	}

	err := p.process(ctx, in.From, body, receivedAt, res)
	p.logResult(ctx, res, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, from, body string, receivedAt time.Time, res *Result) error {
	user, err := ops.ResolveUser(ctx, p.db, p.cfg, from, receivedAt)
	if err != nil {
		return err
	}
	res.UserID = user.ID

	res.MessageID = ops.NewID()
	if err := db.InsertMessage(ctx, p.db, res.MessageID, user.ID, body, receivedAt.Unix()); err != nil {
		return err
	}

	class, rule, err := classify.Explain(body)
	if err != nil {
		return err
	}
	res.Classification = class.String()
	res.Rule = rule
	if err := db.SetMessageClassification(ctx, p.db, res.MessageID, res.Classification); err != nil {
		return err
	}
	res.visit(StateClassified)

	history, err := ops.RecentHistory(ctx, p.db, user, receivedAt, p.cfg.HistoryDays)
	if err != nil {
		return err
	}

	switch class {
	case classify.Question:
		return p.answer(ctx, user, body, history, receivedAt, res)
	default:
		return p.logFood(ctx, user, body, history, receivedAt, res)
	}
}

func (p *Pipeline) logFood(ctx context.Context, user *nutrition.User, body string, history nutrition.History, receivedAt time.Time, res *Result) error {
	res.visit(StateAnalyzing)

	actx, cancel := p.analyzerContext(ctx)
	items, err := p.gateway.AnalyzeFood(actx, body, history)
	cancel()
	if err = gatewayError(err); err != nil {
		if !errors.Is(err, errors.ErrMalformedResponse) {
			p.apologize(ctx, res, err)
			return nil
		}
		// Nothing usable came back, so nothing is logged.
		p.logger.WarnContext(ctx, "food analysis unusable", "message_id", res.MessageID, "error", err)
		items = nil
	}

	entries, skipped := ops.BuildEntries(user.ID, items, res.MessageID, receivedAt)
	res.Skipped = skipped
	res.visit(StateBuilt)

	if err := ops.LogFood(ctx, p.db, entries); err != nil {
		return err
	}
	res.Entries = entries

	today, err := ops.DailySummary(ctx, p.db, user, receivedAt)
	if err != nil {
		return err
	}
	res.visit(StateAggregated)

	res.Reply = reply.FoodEntryReply(entries, skipped, today)
	res.visit(StateFormatted)
	res.visit(StateReplied)
	return nil
}

func (p *Pipeline) answer(ctx context.Context, user *nutrition.User, body string, history nutrition.History, receivedAt time.Time, res *Result) error {
	res.visit(StateAnswering)

	actx, cancel := p.analyzerContext(ctx)
	answer, err := p.gateway.AnswerQuestion(actx, body, nutrition.ProfileOf(user), history)
	cancel()
	if err = gatewayError(err); err != nil {
		p.apologize(ctx, res, err)
		return nil
	}

	today, err := ops.DailySummary(ctx, p.db, user, receivedAt)
	if err != nil {
		return err
	}
	res.visit(StateAggregated)

	res.Reply = reply.QuestionReply(answer, today)
	res.visit(StateFormatted)
	res.visit(StateReplied)
	return nil
}

func (p *Pipeline) apologize(ctx context.Context, res *Result, err error) {
	p.logger.WarnContext(ctx, "analyzer unavailable", "message_id", res.MessageID, "error", err)
	res.Degraded = true
	res.Reply = reply.Unavailable(err)
	res.visit(StateFormatted)
	res.visit(StateReplied)
}

func (p *Pipeline) analyzerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// gatewayError maps anything that is not already a NoshError, including
// context deadline and cancellation, to PROVIDER_UNAVAILABLE.
func gatewayError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewProviderUnavailable(err)
}

func (p *Pipeline) logResult(ctx context.Context, res *Result, start time.Time, err error) {
	states := make([]string, len(res.States))
	for i, s := range res.States {
		states[i] = string(s)
	}
	attrs := []any{
		"user_id", res.UserID,
		"message_id", res.MessageID,
		"classification", res.Classification,
		"rule", res.Rule,
		"entries", len(res.Entries),
		"skipped", res.Skipped,
		"states", strings.Join(states, ">"),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "message failed", append(attrs, "error", err)...)
		return
	}
	p.logger.InfoContext(ctx, "message processed", attrs...)
}
