package handler

// OverflowPolicy defines how a bounded queue behaves when full. There is
// no default: a bounded queue without an explicit policy is a
// configuration error, because the right answer depends on whether the
// deployment prefers latency or completeness.
type OverflowPolicy int

const (
	// PolicyUnset marks a bounded queue whose policy was never chosen.
	PolicyUnset OverflowPolicy = iota
	// Block stalls the producer until space is available.
	Block
	// DropOldest evicts the oldest queued record to make room.
	DropOldest
	// DropNewest drops the incoming record when the queue is full.
	DropNewest
)

// String returns the string representation of the policy
func (p OverflowPolicy) String() string {
	switch p {
	case Block:
		return "Block"
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unset"
	}
}

// ParsePolicy converts a configuration string to an OverflowPolicy.
func ParsePolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "block":
		return Block, true
	case "drop-oldest":
		return DropOldest, true
	case "drop-newest":
		return DropNewest, true
	default:
		return PolicyUnset, false
	}
}
