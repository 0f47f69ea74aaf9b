package state

import (
	"database/sql"
	"errors"
	"time"
)

// Watermark returns the last confirmed-delivered message id for a channel.
// ok is false when no watermark has ever been written.
func (db *DB) Watermark(channelID int64) (id int64, ok bool, err error) {
	row := db.QueryRow(`SELECT message_id FROM watermarks WHERE channel_id = ?`, channelID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, &StateError{Action: "read watermark", Err: err}
	}
	return id, true, nil
}

// SetWatermark advances the watermark for a channel. The upsert keeps it
// monotonically non-decreasing even if a replayed batch reports an older id.
func (db *DB) SetWatermark(channelID, messageID int64) error {
	_, err := db.Exec(`
		INSERT INTO watermarks (channel_id, message_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			message_id = MAX(watermarks.message_id, excluded.message_id),
			updated_at = excluded.updated_at`,
		channelID, messageID, time.Now().UnixMilli())
	if err != nil {
		return &StateError{Action: "write watermark", Err: err}
	}
	return nil
}
