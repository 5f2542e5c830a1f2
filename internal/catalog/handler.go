package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"edutest-system/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.service.GetBoards()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(boards)
}

func (h *Handler) GetStandards(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "boardID")
	if !ok {
		return
	}
	standards, err := h.service.GetStandards(boardID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(standards)
}

func (h *Handler) GetSubjects(w http.ResponseWriter, r *http.Request) {
	standardID, ok := pathID(w, r, "standardID")
	if !ok {
		return
	}
	subjects, err := h.service.GetSubjects(standardID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(subjects)
}

func (h *Handler) GetChapters(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	chapters, err := h.service.GetChapters(subjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(chapters)
}

func (h *Handler) GetTests(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := pathID(w, r, "chapterID")
	if !ok {
		return
	}
	tests, err := h.service.GetTests(chapterID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(tests)
}

// GetTestQuestions lists a test's questions. Correct answers and
// explanations are only included for staff callers.
func (h *Handler) GetTestQuestions(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	questions, err := h.service.GetTestQuestions(testID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	role, _ := r.Context().Value("role").(models.Role)
	includeAnswer := role == models.RoleTeacher || role == models.RoleAdmin

	dtos := make([]models.QuestionDTO, len(questions))
	for i, q := range questions {
		dtos[i] = q.ToDTO(includeAnswer)
	}
	json.NewEncoder(w).Encode(dtos)
}

type createQuestionRequest struct {
	Position      int                 `json:"position"`
	Text          string              `json:"text"`
	QuestionType  models.QuestionType `json:"question_type"`
	Options       []string            `json:"options"`
	CorrectAnswer string              `json:"correct_answer"`
	Explanation   string              `json:"explanation"`
	ImageURL      string              `json:"image_url"`
}

// CreateQuestion adds a question to a test. Staff only.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	role, _ := r.Context().Value("role").(models.Role)
	if role != models.RoleTeacher && role != models.RoleAdmin {
		http.Error(w, "Staff privilege required", http.StatusForbidden)
		return
	}

	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Question text required", http.StatusBadRequest)
		return
	}
	if req.QuestionType == "" {
		req.QuestionType = models.QuestionMCQ
	}

	question := &models.Question{
		TestID:        testID,
		Position:      req.Position,
		Text:          req.Text,
		QuestionType:  req.QuestionType,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		ImageURL:      req.ImageURL,
	}
	for _, text := range req.Options {
		question.Options = append(question.Options, models.Option{Text: text})
	}

	if err := h.service.AddQuestion(question); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(question.ToDTO(true))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
