package tree

import (
	"errors"
	"fmt"
)

// Validation errors raise synchronously to the caller of the mutating call.
// Reconciliation-time failures are logged at the branch boundary instead and
// never abort sibling branches; only storage writes are fatal.
var (
	// ErrNameConflict marks a name already taken in a container's merged
	// namespace (children, leaves, and extensions share one).
	ErrNameConflict = errors.New("name conflict")
	// ErrInvalidSpec marks a malformed extension spec: class/func mutual
	// exclusion, missing required invocation args, or options that the
	// operation does not support.
	ErrInvalidSpec = errors.New("invalid spec")
	// ErrInvalidName marks a name that is not a valid identifier or that
	// collides with a reserved operation identifier.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidTarget marks a target that failed validation during add.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrExtraction marks a source that was unreachable or did not define
	// the requested symbol.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnresolvedReference marks an external reference whose locator and
	// retained handle both failed to resolve.
	ErrUnresolvedReference = errors.New("unresolved external reference")
	// ErrCircularExtension marks an extend whose source is already bound by
	// an ancestor extension.
	ErrCircularExtension = errors.New("circular extension")
	// ErrDepthExceeded marks extension nesting past the configured maximum.
	ErrDepthExceeded = errors.New("extension depth exceeded")
	// ErrInvalidOperation marks an operation the target cannot support,
	// such as removing the root or monkey-patching a leaf.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnsupportedOperation marks operations excluded by design, such as
	// monkey-patching an extension.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrUnknownKey marks an Inspect key absent from the snapshot branch.
	ErrUnknownKey = errors.New("unknown key")
	// ErrBadKeys marks a malformed Inspect key selection.
	ErrBadKeys = errors.New("bad keys")
)

func errEmptyName() error {
	return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
}

func errBadIdentifier(name string) error {
	return fmt.Errorf("%w: %q is not a valid identifier (letters, digits, and underscores only, not starting with a digit)", ErrInvalidName, name)
}

func errReservedName(name string) error {
	return fmt.Errorf("%w: %q is a reserved operation identifier", ErrInvalidName, name)
}
