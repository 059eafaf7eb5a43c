package orders

import "strings"

// Status is an order's lifecycle state. The set is open: owning systems
// may introduce their own values.
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusSubmitted           Status = "SUBMITTED"
	StatusPartiallyFilled     Status = "PARTIALLY_FILLED"
	StatusFilled              Status = "FILLED"
	StatusCancellationPending Status = "CANCELLATION_PENDING"
	StatusCancelled           Status = "CANCELLED"
	StatusRejected            Status = "REJECTED"
	StatusExpired             Status = "EXPIRED"
)

// Label renders the status for humans, e.g. "partially filled"
func (s Status) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// IsTerminal reports whether no further fills are expected
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// ParseStatus normalises free-form input ("partially filled") to a Status
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	return Status(strings.ToUpper(s))
}
