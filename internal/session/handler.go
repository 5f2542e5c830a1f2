package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"edutest-system/internal/models"
	"edutest-system/pkg/cache"
)

type Handler struct {
	service *Service
	repo    *Repository
	cache   *cache.RedisCache
}

func NewHandler(service *Service, repo *Repository, cache *cache.RedisCache) *Handler {
	return &Handler{service: service, repo: repo, cache: cache}
}

type startRequest struct {
	BoardID    uint `json:"board_id"`
	StandardID uint `json:"standard_id"`
	SubjectID  uint `json:"subject_id"`
	ChapterID  uint `json:"chapter_id"`
	TestID     uint `json:"test_id"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type lifecycleRequest struct {
	State string `json:"state"` // "background" | "foreground"
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	view, err := h.service.Start(userID, req.BoardID, req.StandardID, req.SubjectID, req.ChapterID, req.TestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not load test", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(view)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sessionID uuid.UUID, userID uint) (*View, error) {
		return h.service.Get(sessionID, userID)
	})
}

func (h *Handler) SetAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	h.withSession(w, r, func(sessionID uuid.UUID, userID uint) (*View, error) {
		return h.service.SetAnswer(sessionID, userID, req.Answer)
	})
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sessionID uuid.UUID, userID uint) (*View, error) {
		return h.service.Advance(sessionID, userID)
	})
}

func (h *Handler) Retreat(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sessionID uuid.UUID, userID uint) (*View, error) {
		return h.service.Retreat(sessionID, userID)
	})
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(sessionID uuid.UUID, userID uint) (*View, error) {
		return h.service.Finish(sessionID, userID)
	})
}

func (h *Handler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.State != "background" && req.State != "foreground" {
		http.Error(w, "Invalid lifecycle state", http.StatusBadRequest)
		return
	}

	view, warn, err := h.service.Lifecycle(sessionID, userID, req.State == "background")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"session": view,
		"warning": warn,
	})
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.identify(w, r)
	if !ok {
		return
	}

	if err := h.service.Abandon(sessionID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecentResults serves the user's result history, preferring the Redis
// copy and falling back to the database.
func (h *Handler) GetRecentResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	results, err := h.cache.GetRecentResults(userID)
	if err != nil || len(results) == 0 {
		results, err = h.repo.GetResultsByUser(userID)
		if err != nil {
			http.Error(w, "Could not load results", http.StatusInternalServerError)
			return
		}
	}

	json.NewEncoder(w).Encode(results)
}

type resultReview struct {
	models.TestResult
	Questions []models.ResultQuestion `json:"questions"`
}

// GetResult serves one persisted result with its review snapshot.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := mux.Vars(r)["sessionID"]
	result, err := h.repo.GetResultBySession(sessionID)
	if err != nil {
		http.Error(w, "Result not found", http.StatusNotFound)
		return
	}
	if result.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	questions, err := result.Snapshot()
	if err != nil {
		log.Printf("Error decoding snapshot for session %s: %v", sessionID, err)
		http.Error(w, "Corrupt result snapshot", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(resultReview{TestResult: *result, Questions: questions})
}

func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (uint, uuid.UUID, bool) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(mux.Vars(r)["sessionID"])
	if err != nil {
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return 0, uuid.Nil, false
	}
	return userID, sessionID, true
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, op func(uuid.UUID, uint) (*View, error)) {
	userID, sessionID, ok := h.identify(w, r)
	if !ok {
		return
	}

	view, err := op(sessionID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(view)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrAnswerRequired):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
