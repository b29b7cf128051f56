package tree

// State is the node lifecycle:
//
//	Unattached -> Attached -> {Stale | Removed}
//
// Stale nodes recover to Attached on the next successful refresh; Removed is
// terminal.
type State int

const (
	// Unattached: constructed but not yet registered with a parent.
	Unattached State = iota
	// Attached: registered and persisted.
	Attached
	// Stale: external reference unresolved at the last refresh; metadata is
	// kept so a later refresh can recover.
	Stale
	// Removed: detached and persisted out of the mirror. Terminal.
	Removed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case Stale:
		return "stale"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}
