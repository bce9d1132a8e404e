package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/talentprofile/talentprofile/internal/assessment"
)

// GET /models
func ListModelsHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := store.ListModels(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, models)
	}
}

// GET /models/{modelID}
func GetModelHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetModel(r.Context(), chi.URLParam(r, "modelID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, m)
	}
}

type putModelReq struct {
	ID       string                       `json:"id"`
	Name     string                       `json:"name" validate:"required"`
	Category string                       `json:"category"`
	Template bool                         `json:"template"`
	Ranges   []assessment.ModelScaleRange `json:"ranges" validate:"required,min=1,dive"`
}

// POST /models creates or replaces a performance model. Band and weight
// invariants are enforced by the model itself.
func PutModelHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req putModelReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		m := assessment.PerformanceModel{
			ID:       req.ID,
			Name:     req.Name,
			Category: req.Category,
			Template: req.Template,
			Ranges:   req.Ranges,
		}
		if err := m.Validate(); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.PutModel(r.Context(), m); err != nil {
			writeErr(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, m)
	}
}
