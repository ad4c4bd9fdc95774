package deferred

// State represents the lifecycle state of a [Deferred].
// A deferred starts in [Pending] state and transitions to either [Resolved]
// or [Rejected]. State transitions are irreversible.
type State int32

const (
	// Pending indicates the deferred has not yet been resolved or rejected.
	Pending State = iota

	// Resolved indicates the deferred completed successfully.
	Resolved

	// Rejected indicates the deferred failed with a reason.
	Rejected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
