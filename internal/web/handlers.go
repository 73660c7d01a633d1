package web

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
	"github.com/hpungsan/nosh/internal/ops"
	"github.com/hpungsan/nosh/internal/pipeline"
	"github.com/hpungsan/nosh/internal/reply"
)

// maxBodyBytes bounds webhook and API request bodies.
const maxBodyBytes = 64 << 10

// Handlers contains HTTP route handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	renderer *Renderer
	now      func() time.Time
}

func (h *Handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		renderJSONError(w, r, errors.NewPersistenceFailure("ping", err))
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": h.renderer.version})
}

// twiml is the messaging webhook response document.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// HandleWebhook handles POST /webhook/message, a form-encoded chat webhook
// carrying From and Body. The reply is returned as TwiML. Storage failures
// answer 500 so the channel re-delivers the message.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		renderJSONError(w, r, errors.NewInvalidInput("invalid form data"))
		return
	}

	from := r.PostFormValue("From")
	if strings.TrimSpace(from) == "" {
		renderJSONError(w, r, errors.NewInvalidInput("From is required"))
		return
	}

	res, err := h.pipeline.Process(r.Context(), pipeline.Inbound{
		From:       from,
		Body:       r.PostFormValue("Body"),
		ReceivedAt: h.clock(),
	})
	if err != nil {
		renderJSONError(w, r, err)
		return
	}

	out, err := xml.Marshal(twiml{Message: res.Reply})
	if err != nil {
		renderJSONError(w, r, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

// messageRequest is the JSON body of POST /api/v1/messages.
type messageRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// messageResponse is the JSON answer of POST /api/v1/messages.
type messageResponse struct {
	Response       string                   `json:"response"`
	Classification string                   `json:"classification,omitempty"`
	MessageID      string                   `json:"message_id,omitempty"`
	Entries        []nutrition.FoodLogEntry `json:"entries"`
	Skipped        int                      `json:"skipped"`
	Degraded       bool                     `json:"degraded,omitempty"`
}

// HandleAPIMessage handles POST /api/v1/messages.
func (h *Handlers) HandleAPIMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSONError(w, r, errors.NewInvalidInput("request body must be JSON with from and message"))
		return
	}
	if strings.TrimSpace(req.From) == "" {
		renderJSONError(w, r, errors.NewInvalidInput("from is required"))
		return
	}

	res, err := h.pipeline.Process(r.Context(), pipeline.Inbound{
		From:       req.From,
		Body:       req.Message,
		ReceivedAt: h.clock(),
	})
	if err != nil {
		renderJSONError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, messageResponse{
		Response:       res.Reply,
		Classification: res.Classification,
		MessageID:      res.MessageID,
		Entries:        res.Entries,
		Skipped:        res.Skipped,
		Degraded:       res.Degraded,
	})
}

// HandleDailySummary handles GET /users/{phone}/summary. It renders the day
// view as HTML, or the summary as JSON when the client asks for it.
func (h *Handlers) HandleDailySummary(w http.ResponseWriter, r *http.Request) {
	result, err := ops.SummarizeDay(r.Context(), h.db, ops.DaySummaryInput{
		Phone: r.PathValue("phone"),
		Date:  r.URL.Query().Get("date"),
		Now:   h.clock(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	day := result.Summary.Start
	md := reply.DayMarkdown(result.Date, result.Summary, result.Entries, result.User.Location())
	h.renderer.renderPage(w, r, "day", DayPageData{
		PageData:     h.renderer.page("Summary for "+result.Date, result.User.Phone, "summary"),
		Date:         result.Date,
		PrevDate:     day.AddDate(0, 0, -1).Format(nutrition.DateLayout),
		NextDate:     day.AddDate(0, 0, 1).Format(nutrition.DateLayout),
		RenderedHTML: h.renderer.renderMarkdown(md),
	})
}

// HandlePeriodSummary handles GET /users/{phone}/summary/period?start=&end=.
func (h *Handlers) HandlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	result, err := ops.SummarizePeriod(r.Context(), h.db, ops.PeriodSummaryInput{
		Phone: r.PathValue("phone"),
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	})
	if err != nil {
		renderJSONError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleEntries handles GET /users/{phone}/entries, most recent first.
func (h *Handlers) HandleEntries(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	result, err := ops.ListEntries(r.Context(), h.db, ops.ListEntriesInput{
		Phone:  phone,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	user, err := ops.FindUser(r.Context(), h.db, phone)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, r, "entries", EntriesPageData{
		PageData:   h.renderer.page("Entries", user.Phone, "entries"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Location:   user.Location(),
	})
}

// HandleDeleteEntry handles DELETE /users/{phone}/entries/{id}.
func (h *Handlers) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DeleteEntry(r.Context(), h.db, ops.DeleteEntryInput{
		Phone: r.PathValue("phone"),
		ID:    r.PathValue("id"),
	})
	if err != nil {
		renderJSONError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// targetsRequest is the JSON body of PUT /users/{phone}/targets.
type targetsRequest struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
	Clear    []string `json:"clear"`
	Timezone *string  `json:"timezone"`
}

// HandleSetTargets handles PUT /users/{phone}/targets.
func (h *Handlers) HandleSetTargets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req targetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSONError(w, r, errors.NewInvalidInput("request body must be a JSON object"))
		return
	}

	input := ops.SetTargetsInput{
		Phone:    r.PathValue("phone"),
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fat:      req.Fat,
		Timezone: req.Timezone,
	}
	for _, name := range req.Clear {
		n, ok := nutrition.ParseNutrient(name)
		if !ok {
			renderJSONError(w, r, errors.NewInvalidInput("unknown nutrient: "+name))
			return
		}
		input.Clear = append(input.Clear, n)
	}

	result, err := ops.SetTargets(r.Context(), h.db, h.cfg, input)
	if err != nil {
		renderJSONError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
