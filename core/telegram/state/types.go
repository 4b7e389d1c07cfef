package state

import (
	"context"
	"time"
)

// State identifies a conversation step.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session is the transient conversation record of one user.
type Session struct {
	State State `json:"state"`
	// QuestionID is the question the user is expected to answer next.
	QuestionID string `json:"question_id,omitempty"`
	// RunID correlates every event of one survey attempt.
	RunID     string            `json:"run_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Active reports whether the session holds a non-idle state.
func (s Session) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Idle returns the session assumed for users without a stored one.
func Idle() Session {
	return Session{State: StateIdle}
}

// Manager stores sessions keyed by Telegram user id.
// Get never fails for a missing session; it returns Idle().
type Manager interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}
