package core

import (
	"github.com/google/uuid"
)

// NewTaskID returns a short random identifier for a download task. Eight hex
// characters keep the IDs easy to paste into status queries while staying
// unique enough for the handful of tasks a single host tracks.
func NewTaskID() string {
	return uuid.NewString()[:8]
}
