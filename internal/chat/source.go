package chat

import (
	"context"
	"fmt"
)

// Source is the chat platform the archiver consumes. Implementations own
// authentication and the network connection; the rest of the system only
// sees parsed Messages.
type Source interface {
	// Start connects and authenticates. Fails with *ConnectionError.
	Start(ctx context.Context) error

	// Stop releases the connection. Safe to call after a failed Start.
	Stop()

	// FetchBatch returns up to limit messages with id > minID, oldest first.
	// An empty slice (no error) means the credentials cannot page history,
	// e.g. a bot token.
	FetchBatch(ctx context.Context, channelID int64, limit int, minID int64) ([]*Message, error)

	// Subscribe delivers new channel posts to fn until the context is
	// cancelled or the connection drops (*ConnectionError).
	Subscribe(ctx context.Context, channelID int64, fn func(*Message)) error
}

// ConnectionError indicates the chat platform is unreachable or rejected
// our credentials. Fatal to startup.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("chat connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
