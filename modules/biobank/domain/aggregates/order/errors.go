package order

import (
	"fmt"

	gerrors "github.com/go-faster/errors"
)

var (
	ErrNotFound = gerrors.New("order not found")
	// ErrNoRootSample indicates a stored order with no root specimen row, a
	// broken invariant that should never occur outside corrupted data.
	ErrNoRootSample = gerrors.New("order has no root sample")
)

// ErrIllegalTransition reports a lifecycle transition the state machine
// forbids, naming both ends.
type ErrIllegalTransition struct {
	From Status
	To   Status
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// ErrVersionMismatch is an optimistic-concurrency failure. Supplied is the
// version the caller read; Stored is what the database holds now.
type ErrVersionMismatch struct {
	Supplied int32
	Stored   int32
}

func (e ErrVersionMismatch) Error() string {
	return fmt.Sprintf("version mismatch: supplied %d, stored %d", e.Supplied, e.Stored)
}
