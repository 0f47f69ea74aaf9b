package state

import "time"

// Stats are cumulative run counters. Advisory only: nothing reads them to
// make correctness decisions.
type Stats struct {
	Processed int64
	Errors    int64
	LastRun   time.Time
}

// Stats returns the current counters.
func (db *DB) Stats() (Stats, error) {
	var (
		s       Stats
		lastRun *int64
	)
	row := db.QueryRow(`SELECT processed, errors, last_run FROM stats WHERE id = 1`)
	if err := row.Scan(&s.Processed, &s.Errors, &lastRun); err != nil {
		return Stats{}, &StateError{Action: "read stats", Err: err}
	}
	if lastRun != nil {
		s.LastRun = time.UnixMilli(*lastRun)
	}
	return s, nil
}

// AddStats bumps the counters and stamps the last-run time.
func (db *DB) AddStats(processed int, failed bool) error {
	errDelta := 0
	if failed {
		errDelta = 1
	}
	_, err := db.Exec(`
		UPDATE stats SET
			processed = processed + ?,
			errors    = errors + ?,
			last_run  = ?
		WHERE id = 1`,
		processed, errDelta, time.Now().UnixMilli())
	if err != nil {
		return &StateError{Action: "write stats", Err: err}
	}
	return nil
}
