package payment

// TransactionStatus represents the status of a payment transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
	StatusRefunded   TransactionStatus = "refunded"
)

// String returns the string representation of the status.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known transaction status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsSettled returns true once the authorization outcome is known.
func (s TransactionStatus) IsSettled() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// cancelled has no caller inside this service; it is reserved for external cancellation.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransitionTo checks if a transition from the current status to target is valid.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// RefundStatus represents the status of a refund.
type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
)

// String returns the string representation of the status.
func (s RefundStatus) String() string {
	return string(s)
}
