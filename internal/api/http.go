package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venturekit/interviewd/internal/intake"
	"github.com/venturekit/interviewd/internal/interview"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
	"github.com/venturekit/interviewd/internal/summary"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxImportBodySize = 10 << 20 // 10MB, raw PDF uploads

const ownerHeader = "X-Owner-ID"

// Deps holds the dependencies for the HTTP surface.
type Deps struct {
	Service *interview.Service
	Store   *storage.Store
	Token   string
}

// NewHandler returns the daemon's HTTP handler. Health and metrics are
// public; everything under /v1 requires the bearer token plus an X-Owner-ID
// header identifying the founder on whose behalf the call is made.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/interview/turns", handleNextTurn(deps))
		r.Post("/interview/{id}/summary", handleSummarize(deps))
		r.Get("/interview/{id}", handleGetSession(deps))
		r.Put("/intake", handlePutIntake(deps))
		r.Post("/intake/import", handleImportIntake(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type turnResponse struct {
	SessionID        string     `json:"session_id"`
	Mode             string     `json:"mode"`
	Question         *string    `json:"question"` // null exactly when force_complete
	Transcript       []turnView `json:"transcript"`
	QuestionsAsked   int        `json:"questions_asked"`
	CanFinalize      bool       `json:"can_finalize"`
	ForceComplete    bool       `json:"force_complete"`
	ApproachingLimit bool       `json:"approaching_limit"`
}

func handleNextTurn(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req turnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Service.NextTurn(r.Context(), interview.NextTurnRequest{
			OwnerID:   r.Header.Get(ownerHeader),
			SessionID: req.SessionID,
			Answer:    req.Answer,
		})
		if err != nil {
			serviceError(w, err)
			return
		}

		resp := turnResponse{
			SessionID:        res.SessionID,
			Mode:             string(res.Mode),
			Transcript:       viewTranscript(res.Transcript),
			QuestionsAsked:   countInterviewerTurns(res.Transcript),
			CanFinalize:      res.CanFinalize,
			ForceComplete:    res.ForceComplete,
			ApproachingLimit: res.ApproachingLimit,
		}
		if !res.ForceComplete {
			resp.Question = &res.Question
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Service.Summarize(r.Context(), r.Header.Get(ownerHeader), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

type turnView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type sessionView struct {
	ID         string          `json:"id"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Transcript []turnView      `json:"transcript"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Service.GetSession(r.Header.Get(ownerHeader), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}

		view := sessionView{
			ID:         sess.ID,
			Mode:       sess.Mode,
			Status:     sess.Status,
			Transcript: viewTranscript(sess.Transcript),
			CreatedAt:  sess.CreatedAt,
			UpdatedAt:  sess.UpdatedAt,
		}
		if sess.Summary != "" {
			view.Summary = json.RawMessage(sess.Summary)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view)
	}
}

type intakeRequest struct {
	Fields              map[string]string `json:"fields"`
	OnboardingCompleted bool              `json:"onboarding_completed"`
}

func handlePutIntake(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		ownerID := r.Header.Get(ownerHeader)
		if ownerID == "" {
			httpError(w, http.StatusBadRequest, "ownership_unresolved", "%s header is required", ownerHeader)
			return
		}

		var req intakeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := deps.Store.SetIntake(storage.Intake{
			OwnerID:             ownerID,
			Fields:              req.Fields,
			OnboardingCompleted: req.OnboardingCompleted,
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save intake: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

// handleImportIntake accepts a raw PDF body, extracts the labelled onboarding
// fields from its text, and merges them into the owner's intake. A successful
// import marks onboarding as completed.
func handleImportIntake(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		ownerID := r.Header.Get(ownerHeader)
		if ownerID == "" {
			httpError(w, http.StatusBadRequest, "ownership_unresolved", "%s header is required", ownerHeader)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		fields, err := intake.ExtractPDF(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "extracting intake fields: %v", err)
			return
		}

		merged := fields
		if existing, err := deps.Store.GetIntake(ownerID); err == nil {
			merged = existing.Fields
			if merged == nil {
				merged = make(map[string]string)
			}
			for k, v := range fields {
				merged[k] = v
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "loading intake: %v", err)
			return
		}

		if err := deps.Store.SetIntake(storage.Intake{
			OwnerID:             ownerID,
			Fields:              merged,
			OnboardingCompleted: true,
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save intake: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "imported",
			"fields": fields,
		})
	}
}

func viewTranscript(transcript []storage.Turn) []turnView {
	out := make([]turnView, len(transcript))
	for i, turn := range transcript {
		out[i] = turnView{Role: turn.Role, Content: turn.Content, Timestamp: turn.Timestamp}
	}
	return out
}

func countInterviewerTurns(transcript []storage.Turn) int {
	n := 0
	for _, turn := range transcript {
		if turn.Role == storage.RoleInterviewer {
			n++
		}
	}
	return n
}

// serviceError maps engine errors onto the API's error envelope.
func serviceError(w http.ResponseWriter, err error) {
	var parseErr *summary.ParseError
	switch {
	case errors.Is(err, interview.ErrOwnerUnresolved):
		httpError(w, http.StatusBadRequest, "ownership_unresolved", "%s header is required", ownerHeader)
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "session call limit reached")
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, interview.ErrSessionCompleted):
		httpError(w, http.StatusConflict, "conflict", "session is already completed")
	case errors.Is(err, interview.ErrInsufficientDepth):
		httpError(w, http.StatusConflict, "insufficient_depth", "transcript too shallow to summarize")
	case errors.Is(err, storage.ErrVersionConflict):
		httpError(w, http.StatusConflict, "conflict", "session was modified concurrently, retry")
	case errors.As(err, &parseErr):
		httpError(w, http.StatusUnprocessableEntity, "summary_parse_error", "summary rejected: %v", parseErr)
	case errors.Is(err, interview.ErrBackendUnavailable):
		httpError(w, http.StatusBadGateway, "api_error", "narrative backend unavailable")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
