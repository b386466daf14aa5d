package render

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateAwaiting  State = "awaiting_result"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	return s == StateIdle || s == StateSucceeded || s == StateFailed
}

type RunStatus struct {
	RunID      uuid.UUID  `json:"run_id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	State      State      `json:"state"`
	Progress   float64    `json:"progress"`
	Step       string     `json:"step,omitempty"`
	EditCount  int        `json:"edit_count"`
	Canceled   bool       `json:"canceled,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	Suggestion string     `json:"suggestion,omitempty"`
	VersionID  *uuid.UUID `json:"version_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
