// Package http maps the in-process assessment API 1:1 onto HTTP handlers.
// Handlers do decoding, validation and error translation only; all semantics
// live in the session service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/talentprofile/talentprofile/internal/assessment"
	"github.com/talentprofile/talentprofile/internal/session"
)

var validate = validator.New()

// statusFor translates core error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assessment.ErrInputInvalid):
		return http.StatusBadRequest
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrStateInvalid):
		return http.StatusConflict
	case errors.Is(err, assessment.ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type createCandidateReq struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// POST /candidates
func CreateCandidateHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCandidateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := assessment.Candidate{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(req.Name),
			Email:     strings.TrimSpace(req.Email),
			CreatedAt: time.Now().Unix(),
		}
		if err := store.PutCandidate(r.Context(), c); err != nil {
			writeErr(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, c)
	}
}

type createAssessmentReq struct {
	CandidateID string `json:"candidate_id" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=full cognitive_only behavioral_only interests_only"`
}

// POST /assessments
func CreateAssessmentHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssessmentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a, err := svc.Create(r.Context(), req.CandidateID, assessment.AssessmentType(req.Type))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, a)
	}
}

// POST /assessments/{assessmentID}/start
func StartAssessmentHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Start(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"assessment":    a,
			"first_section": a.CurrentSection,
		})
	}
}

// publicItem is the examinee-facing item view: no answer key, no IRT
// parameters.
type publicItem struct {
	ID      string                `json:"id"`
	ScaleID string                `json:"scale_id"`
	Text    string                `json:"text"`
	Format  assessment.ItemFormat `json:"format"`
	Options []string              `json:"options,omitempty"`
}

func sanitize(it *assessment.Item) *publicItem {
	if it == nil {
		return nil
	}
	return &publicItem{ID: it.ID, ScaleID: it.ScaleID, Text: it.Text, Format: it.Format, Options: it.Options}
}

// GET /assessments/{assessmentID}/next
func NextItemHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nx, err := svc.NextItem(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"item":             sanitize(nx.Item),
			"section":          nx.Section,
			"item_index":       nx.ItemIndex,
			"section_complete": nx.SectionComplete,
			"next_section":     nx.NextSection,
			"completed":        nx.Completed,
		})
	}
}

type respondReq struct {
	ItemID         string                   `json:"item_id" validate:"required"`
	Value          assessment.ResponseValue `json:"value" validate:"required"`
	ResponseTimeMs int                      `json:"response_time_ms" validate:"gte=0"`
}

// POST /assessments/{assessmentID}/responses
func RespondItemHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req respondReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := svc.Respond(r.Context(), chi.URLParam(r, "assessmentID"), req.ItemID, req.Value, req.ResponseTimeMs)
		if err != nil {
			writeErr(w, err)
			return
		}
		// correctness and theta stay server-side
		writeJSON(w, map[string]any{"id": resp.ID, "recorded_at": resp.CreatedAt})
	}
}

// POST /assessments/{assessmentID}/complete
func CompleteAssessmentHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := svc.Complete(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, scores)
	}
}

// GET /assessments/{assessmentID}/scores
func GetProfileHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := svc.Profile(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, scores)
	}
}

// GET /assessments?candidate_id=&status=&limit=&offset=
func ListAssessmentsHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		out, err := store.ListAssessments(r.Context(), assessment.ListOpts{
			CandidateID: q.Get("candidate_id"),
			Status:      assessment.Status(q.Get("status")),
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// GET /assessments/{assessmentID}/match/{modelID}
func ComputeMatchHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Match(r.Context(), chi.URLParam(r, "assessmentID"), chi.URLParam(r, "modelID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// GET /assessments/{assessmentID}/interview/{modelID}
func InterviewQuestionsHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blocks, err := svc.InterviewQuestions(r.Context(), chi.URLParam(r, "assessmentID"), chi.URLParam(r, "modelID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, blocks)
	}
}
