package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"edutest-system/internal/models"
)

// Envelope is the uniform response shape of the staff operations. Either
// Data or Error is set, never both.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req CreateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, &Error{Code: CodeInvalidArgument, Message: "invalid request body"})
		return
	}

	user, opErr := h.service.CreateStaff(req)
	writeEnvelope(w, http.StatusCreated, user, opErr)
}

func (h *Handler) UpdateStaffRole(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	userID, ok := targetID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusOK, nil, &Error{Code: CodeInvalidArgument, Message: "invalid request body"})
		return
	}

	user, opErr := h.service.UpdateStaffRole(userID, req.Role)
	writeEnvelope(w, http.StatusOK, user, opErr)
}

func (h *Handler) ToggleStaffActive(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	userID, ok := targetID(w, r)
	if !ok {
		return
	}

	user, opErr := h.service.ToggleStaffActive(userID)
	writeEnvelope(w, http.StatusOK, user, opErr)
}

// authorize enforces that the caller is authenticated and holds the
// admin role, reporting failures through the envelope.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := r.Context().Value("user_id").(uint); !ok {
		writeEnvelope(w, http.StatusOK, nil, &Error{Code: CodeUnauthenticated, Message: "authentication required"})
		return false
	}
	role, ok := r.Context().Value("role").(models.Role)
	if !ok || role != models.RoleAdmin {
		writeEnvelope(w, http.StatusOK, nil, &Error{Code: CodePermissionDenied, Message: "admin privilege required"})
		return false
	}
	return true
}

func targetID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["userID"], 10, 32)
	if err != nil {
		writeEnvelope(w, http.StatusOK, nil, &Error{Code: CodeInvalidArgument, Message: "invalid user id"})
		return 0, false
	}
	return uint(id), true
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, opErr *Error) {
	w.Header().Set("Content-Type", "application/json")
	if opErr != nil {
		w.WriteHeader(statusFor(opErr.Code))
		json.NewEncoder(w).Encode(Envelope{Success: false, Error: opErr})
		return
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

func statusFor(code string) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
