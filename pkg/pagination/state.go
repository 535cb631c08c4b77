package pagination

import (
	"time"

	"github.com/Sternrassler/pagefeed/pkg/client"
)

// Phase is the controller's position in its state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhasePaging  Phase = "paging"
)

// ErrorInfo describes the most recent failed fetch.
type ErrorInfo struct {
	Kind    client.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Page    int              `json:"page"`
	At      time.Time        `json:"at"`
}

// State is a point-in-time copy of the controller state. It never aliases
// the controller's internal slices.
type State struct {
	Items       []client.Item `json:"items"`
	CurrentPage int           `json:"current_page"`
	HasMore     bool          `json:"has_more"`
	IsLoading   bool          `json:"is_loading"`
	IsPaging    bool          `json:"is_paging"`
	LastError   *ErrorInfo    `json:"last_error,omitempty"`

	// Version increases with every state change.
	Version uint64 `json:"version"`
}

// Phase derives the state machine position from the flags.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.IsPaging:
		return PhasePaging
	default:
		return PhaseIdle
	}
}

// ShowRetry reports whether nothing could be loaded and a retry affordance
// should replace the list.
func (s State) ShowRetry() bool {
	return len(s.Items) == 0 && s.LastError != nil
}

// ShowInlineError reports whether an error should be surfaced next to an
// already populated list.
func (s State) ShowInlineError() bool {
	return len(s.Items) > 0 && s.LastError != nil
}

// Last returns the trailing item, if any.
func (s State) Last() (client.Item, bool) {
	if len(s.Items) == 0 {
		return client.Item{}, false
	}
	return s.Items[len(s.Items)-1], true
}
