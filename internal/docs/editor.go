package docs

import (
	"context"
	"fmt"
)

// Editor is the remote document surface the pipeline writes to. The batch
// handed to Apply either lands as a whole or is rejected as a whole; no
// partial-application contract is assumed beyond that.
type Editor interface {
	// EndIndex returns the position where the next inserted character lands.
	EndIndex(ctx context.Context) (int, error)

	// Apply submits one ordered operation list as a single atomic update.
	Apply(ctx context.Context, ops []Op) error

	// TestConnection verifies the document is reachable and writable.
	TestConnection(ctx context.Context) bool
}

// DocumentError indicates the remote rejected a read or write. Recoverable:
// it drives the pipeline's retry and degrade path.
type DocumentError struct {
	Action string
	Err    error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.Action, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }
