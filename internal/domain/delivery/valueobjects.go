package delivery

// Status represents the lifecycle state of a webhook delivery
type Status string

const (
	// StatusPending represents a delivery waiting for its next attempt
	StatusPending Status = "pending"
	// StatusDelivered represents a delivery acknowledged with a 2xx response. Terminal.
	StatusDelivered Status = "delivered"
	// StatusDeadLetter represents a delivery that exhausted all attempts.
	// Terminal until an operator replays it.
	StatusDeadLetter Status = "dead_letter"
)

// IsValid checks if the delivery status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusDeadLetter:
		return true
	default:
		return false
	}
}

// String returns the string representation of the delivery status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the dispatcher will never pick up a delivery in
// this status. Dead-lettered deliveries can still be replayed explicitly.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusDeadLetter
}
