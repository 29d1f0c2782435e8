package checkout

// Status represents the lifecycle state of a checkout session.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusExpired     Status = "expired"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a known session status.
func (s Status) IsValid() bool {
	switch s {
	case StatusInitialized, StatusProcessing, StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

var transitions = map[Status][]Status{
	StatusInitialized: {StatusProcessing, StatusExpired},
	StatusProcessing:  {StatusCompleted, StatusFailed},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusExpired:     {},
}

// CanTransitionTo checks if a transition from the current status to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
