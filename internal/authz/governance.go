package authz

// CycleStatus is the governance state of a planning cycle.
type CycleStatus string

const (
	CycleDraft    CycleStatus = "DRAFT"
	CycleActive   CycleStatus = "ACTIVE"
	CycleLocked   CycleStatus = "LOCKED"
	CycleArchived CycleStatus = "ARCHIVED"
)

// cycleBlocks reports whether the governance guard stops a mutation. Reads
// are never blocked here; the engine only consults this for mutation-class
// actions. Only LOCKED blocks, and bypass-capable roles pass through.
func cycleBlocks(status CycleStatus, assignments []Assignment, chain ScopeChain) bool {
	if status != CycleLocked {
		return false
	}
	return !canBypassLock(assignments, chain)
}
