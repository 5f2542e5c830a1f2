package models

type QuestionDTO struct {
	ID            uint         `json:"id"`
	Position      int          `json:"position"`
	Text          string       `json:"text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []OptionDTO  `json:"options,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"` // staff only
	Explanation   string       `json:"explanation,omitempty"`    // staff only
}

type OptionDTO struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// ToDTO strips server-side fields. The correct answer and explanation are
// only included for staff callers; students never see them mid-session.
func (q Question) ToDTO(includeAnswer bool) QuestionDTO {
	optionDTOs := make([]OptionDTO, len(q.Options))
	for i, opt := range q.Options {
		optionDTOs[i] = OptionDTO{
			ID:   opt.ID,
			Text: opt.Text,
		}
	}

	dto := QuestionDTO{
		ID:           q.ID,
		Position:     q.Position,
		Text:         q.Text,
		QuestionType: q.QuestionType,
		Options:      optionDTOs,
		ImageURL:     q.ImageURL,
	}
	if includeAnswer {
		dto.CorrectAnswer = q.CorrectAnswer
		dto.Explanation = q.Explanation
	}
	return dto
}
