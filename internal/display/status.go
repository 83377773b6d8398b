package display

import "sync"

// StatusState is what the status region currently shows
type StatusState int

const (
	StatusLoading StatusState = iota
	StatusHidden
	StatusError
)

func (s StatusState) String() string {
	switch s {
	case StatusHidden:
		return "hidden"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}

// ErrorClass is the style class applied on failure
const ErrorClass = "error"

// Status is the loading indicator region shown over a map
type Status struct {
	mu      sync.RWMutex
	state   StatusState
	message string
	class   string
}

// NewStatus starts in the loading state
func NewStatus() *Status {
	return &Status{state: StatusLoading}
}

// Hide clears the indicator after a successful load
func (s *Status) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatusHidden
	s.message = ""
	s.class = ""
}

// Fail shows message with the error class
func (s *Status) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatusError
	s.message = message
	s.class = ErrorClass
}

// Snapshot returns state, message and style class
func (s *Status) Snapshot() (StatusState, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.message, s.class
}
