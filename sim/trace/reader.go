package trace

import (
	"database/sql"
	"fmt"

	"github.com/simline/simline/sim/event"
)

// SQLiteReader reads a trace database written by SQLiteRecorder.
type SQLiteReader struct {
	db *sql.DB
}

// OpenSQLiteReader opens an existing trace database.
func OpenSQLiteReader(path string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	return &SQLiteReader{db: db}, nil
}

// ListEvents returns the stored events of runID, or of every run when
// runID is empty, in emission order.
func (r *SQLiteReader) ListEvents(runID string) ([]StoredEvent, error) {
	return listEvents(r.db, runID)
}

// ListRuns returns every finished run.
func (r *SQLiteReader) ListRuns() ([]StoredRun, error) {
	return listRuns(r.db)
}

// Close closes the database.
func (r *SQLiteReader) Close() error {
	return r.db.Close()
}

func listEvents(db *sql.DB, runID string) ([]StoredEvent, error) {
	query := `SELECT seq, run_id, timestamp, type, part_id, data FROM events`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY run_id, seq`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		var ev StoredEvent
		var typ, data string
		if err := rows.Scan(&ev.Seq, &ev.RunID, &ev.Timestamp, &typ, &ev.PartID, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Type = event.Type(typ)
		ev.Data = []byte(data)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func listRuns(db *sql.DB) ([]StoredRun, error) {
	rows, err := db.Query(`SELECT run_id, end_time, stopped_early, statistics FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []StoredRun{}
	for rows.Next() {
		var run StoredRun
		var statistics string
		if err := rows.Scan(&run.RunID, &run.EndTime, &run.StoppedEarly, &statistics); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Statistics = []byte(statistics)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
