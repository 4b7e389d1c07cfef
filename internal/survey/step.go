package survey

import (
	"github.com/m3rciful/surveybot/internal/store"
)

// StepKind tells the caller what to render.
type StepKind string

const (
	StepQuestion   StepKind = "question"
	StepCheckpoint StepKind = "checkpoint"
	StepCompleted  StepKind = "completed"
)

// Step is the outcome of an engine operation.
type Step struct {
	Kind StepKind
	// Rejected marks a re-emitted prompt after an answer failed validation.
	Rejected   bool
	QuestionID string
	Prompt     string
	Options    []string
	Position   int
	Total      int
	RunID      string

	// Set on StepCompleted only.
	FinalMessage string
	Summary      string
	Response     *store.SurveyResponse
}
