package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a question id does not exist.
var ErrNotFound = errors.New("question not found")

// Step is a single step of a worked math solution, in solution order.
type Step struct {
	StepNumber  int    `json:"stepNumber"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Calculation string `json:"calculation"`
	Result      string `json:"result"`
}

// Question is a persisted Q&A record. Only IsSaved changes after creation,
// and only through ToggleSave.
type Question struct {
	ID           int       `json:"id"`
	UserID       *int      `json:"userId"`
	OriginalText string    `json:"originalText"`
	QuestionType string    `json:"questionType"` // "math", "general", ...
	Answer       string    `json:"answer"`
	Steps        []Step    `json:"steps"`
	Confidence   *int      `json:"confidence"` // OCR confidence 0-100, nil when unknown
	CreatedAt    time.Time `json:"createdAt"`
	IsSaved      bool      `json:"isSaved"`
}

// InsertQuestion is the Create input; id and createdAt are store-assigned.
type InsertQuestion struct {
	UserID       *int
	OriginalText string
	QuestionType string
	Answer       string
	Steps        []Step
	Confidence   *int
	IsSaved      bool
}

type QuestionStore interface {
	Create(ctx context.Context, q InsertQuestion) (Question, error)
	Get(ctx context.Context, id int) (Question, error)
	// List returns all questions, or only those of userID when non-nil.
	List(ctx context.Context, userID *int) ([]Question, error)
	// ListRecent returns up to limit questions ordered by createdAt descending.
	// limit <= 0 means the default of 10.
	ListRecent(ctx context.Context, limit int) ([]Question, error)
	// ToggleSave flips IsSaved and returns the updated record.
	ToggleSave(ctx context.Context, id int) (Question, error)
}

const defaultRecentLimit = 10
