package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/amarchetti/teledoc/internal/chat"
)

// PendingBatch is the staged copy of a buffer whose flush failed. Its
// presence means those messages were not confirmed delivered and must be
// replayed before any new catch-up work.
type PendingBatch struct {
	BatchID  string
	Messages []*chat.Message
	StagedAt time.Time
}

// StagePending writes the whole unflushed buffer as the single pending
// record, replacing any prior one.
func (db *DB) StagePending(batchID string, msgs []*chat.Message) error {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return &StateError{Action: "encode pending batch", Err: err}
	}
	_, err = db.Exec(`
		INSERT INTO pending_batch (id, batch_id, messages, staged_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			batch_id  = excluded.batch_id,
			messages  = excluded.messages,
			staged_at = excluded.staged_at`,
		batchID, string(payload), time.Now().UnixMilli())
	if err != nil {
		return &StateError{Action: "write pending batch", Err: err}
	}
	return nil
}

// Pending returns the staged batch, or nil when none exists.
func (db *DB) Pending() (*PendingBatch, error) {
	var (
		batchID  string
		payload  string
		stagedAt int64
	)
	row := db.QueryRow(`SELECT batch_id, messages, staged_at FROM pending_batch WHERE id = 1`)
	if err := row.Scan(&batchID, &payload, &stagedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &StateError{Action: "read pending batch", Err: err}
	}

	var msgs []*chat.Message
	if err := json.Unmarshal([]byte(payload), &msgs); err != nil {
		return nil, &StateError{Action: "decode pending batch", Err: err}
	}
	return &PendingBatch{
		BatchID:  batchID,
		Messages: msgs,
		StagedAt: time.UnixMilli(stagedAt),
	}, nil
}

// ClearPending removes the staged batch after a confirmed delivery.
func (db *DB) ClearPending() error {
	if _, err := db.Exec(`DELETE FROM pending_batch WHERE id = 1`); err != nil {
		return &StateError{Action: "clear pending batch", Err: err}
	}
	return nil
}
