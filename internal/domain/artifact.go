package domain

import (
	"time"

	"github.com/google/uuid"
)

// CodeSnippet фрагмент кода в статье.
type CodeSnippet struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// PracticeProblem задача для самостоятельной практики.
type PracticeProblem struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
	Link       string `json:"link,omitempty"`
}

// Artifact сгенерированная статья, ровно одна на элемент расписания.
type Artifact struct {
	ID             uuid.UUID
	ScheduleItemID uuid.UUID
	Title          string
	Slug           string
	ELI5           string
	Technical      string
	CodeSnippets   []CodeSnippet
	RealWorld      string
	Practice       []PracticeProblem
	// Placeholder true, если генерация не удалась и сохранена заглушка
	Placeholder bool
	ViewCount   int
	CreatedAt   time.Time
}
