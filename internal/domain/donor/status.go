package donor

// Provider identifies the payment provider owning a subscription.
type Provider string

const (
	ProviderPayPal Provider = "paypal"
	ProviderStripe Provider = "stripe"
)

// Status represents a donor's lifecycle state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusActive       Status = "active"
	StatusTrial        Status = "trial"
	StatusPastDue      Status = "past_due"
	StatusSuspended    Status = "suspended"
	StatusCancelled    Status = "cancelled"
	StatusExpired      Status = "expired"
	StatusTrialExpired Status = "trial_expired"
)

// ValidStatuses enumerates acceptable donor statuses.
var ValidStatuses = map[Status]bool{
	StatusPending:      true,
	StatusActive:       true,
	StatusTrial:        true,
	StatusPastDue:      true,
	StatusSuspended:    true,
	StatusCancelled:    true,
	StatusExpired:      true,
	StatusTrialExpired: true,
}

// Terminated reports whether the status is a terminal, revocation-eligible one.
func (s Status) Terminated() bool {
	switch s {
	case StatusCancelled, StatusSuspended, StatusExpired, StatusTrialExpired:
		return true
	}
	return false
}

// TerminationCause classifies why a subscription ended.
type TerminationCause string

const (
	CauseCancelled TerminationCause = "cancelled"
	CauseSuspended TerminationCause = "suspended"
	CauseExpired   TerminationCause = "expired"
)

// StatusForCause maps a termination cause onto the donor status it produces.
func StatusForCause(cause TerminationCause) Status {
	switch cause {
	case CauseSuspended:
		return StatusSuspended
	case CauseExpired:
		return StatusExpired
	default:
		return StatusCancelled
	}
}
