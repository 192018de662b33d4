package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/usecase"
)

type harvestResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type batchResponse struct {
	TaskIDs  []string               `json:"task_ids"`
	Count    int                    `json:"count"`
	Message  string                 `json:"message"`
	Failures []usecase.BatchFailure `json:"failures,omitempty"`
}

type listResponse struct {
	Tasks []*model.Task `json:"tasks"`
	Count int           `json:"count"`
}

type healthResponse struct {
	Status          string `json:"status"`
	OllamaAvailable bool   `json:"ollama_available"`
	RedisAvailable  bool   `json:"redis_available"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	t, err := s.taskUC.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, harvestResponse{
		TaskID:  t.ID,
		Status:  string(t.Status),
		Message: "Harvesting started. Poll /harvest/{task_id} for the result.",
	})
}

func (s *Server) handleHarvestBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []model.CreateRequest `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.taskUC.CreateBatch(r.Context(), req.Requests)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg := "Batch accepted."
	if len(res.Failures) > 0 {
		msg = "Batch partially accepted; see failures."
	}
	writeJSON(w, http.StatusAccepted, batchResponse{
		TaskIDs:  res.IDs,
		Count:    len(res.IDs),
		Message:  msg,
		Failures: res.Failures,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, err := s.taskUC.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer", Field: "limit"})
			return
		}
		limit = n
	}

	tasks, err := s.taskUC.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	writeJSON(w, http.StatusOK, listResponse{Tasks: tasks, Count: len(tasks)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.taskUC.Health(r.Context())

	status := "ok"
	switch {
	case !st.InferenceAvailable:
		status = "unhealthy"
	case st.Degraded || !st.StoreAvailable:
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          status,
		OllamaAvailable: st.InferenceAvailable,
		RedisAvailable:  st.StoreAvailable,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "task not found"})
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
