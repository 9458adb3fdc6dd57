// Package trace persists the event stream of simulation runs to SQLite so
// that a run can be inspected after the fact. The trace is an output log;
// nothing in the simulator reads it back as state.
package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/simline/simline/sim/event"
)

// DefaultBatchSize is the number of events buffered before a transaction
// is committed.
const DefaultBatchSize = 10000

// DefaultPath returns a fresh trace file name in the working directory.
func DefaultPath() string {
	return "simline_trace_" + xid.New().String() + ".sqlite3"
}

// StoredEvent is one row of the events table.
type StoredEvent struct {
	Seq       uint64
	RunID     string
	Timestamp float64
	Type      event.Type
	PartID    string
	Data      json.RawMessage
}

// StoredRun is one row of the runs table, written when a run ends.
type StoredRun struct {
	RunID        string
	EndTime      float64
	StoppedEarly bool
	Statistics   json.RawMessage
}

// SQLiteRecorder buffers events and writes them to SQLite in batches, one
// transaction per batch. It is fed from an event.Hub subscription so that
// disk I/O never runs on the kernel goroutine.
type SQLiteRecorder struct {
	db        *sql.DB
	path      string
	eventStmt *sql.Stmt
	runStmt   *sql.Stmt
	batchSize int

	mu      sync.Mutex
	pending []event.Event
	written int

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteRecorder creates the database at path, which must not exist
// yet. A non-positive batchSize selects DefaultBatchSize. Buffered events
// are flushed when the process exits through atexit.
func NewSQLiteRecorder(path string, batchSize int) (*SQLiteRecorder, error) {
	if path == "" {
		path = DefaultPath()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("trace file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	r := &SQLiteRecorder{
		db:        db,
		path:      path,
		batchSize: batchSize,
		pending:   make([]event.Event, 0, batchSize),
	}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() {
		if err := r.Close(); err != nil {
			logrus.Errorf("closing trace %s: %v", r.path, err)
		}
	})
	logrus.Infof("event trace is collected in %s", path)
	return r, nil
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// Written returns the number of events committed so far.
func (r *SQLiteRecorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Write buffers ev, flushing when the batch is full or the run has ended.
func (r *SQLiteRecorder) Write(ev event.Event) error {
	r.mu.Lock()
	r.pending = append(r.pending, ev)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full || isRunEnd(ev.Type) {
		return r.Flush()
	}
	return nil
}

// Consume writes every event from sub until its channel closes, then
// flushes. Run it on its own goroutine; it returns when the subscription ends.
func (r *SQLiteRecorder) Consume(sub *event.Subscription) {
	for ev := range sub.C() {
		if err := r.Write(ev); err != nil {
			logrus.Errorf("trace %s: %v", r.path, err)
		}
	}
	if err := r.Flush(); err != nil {
		logrus.Errorf("trace %s: %v", r.path, err)
	}
	if n := sub.Dropped(); n > 0 {
		logrus.Warnf("trace %s: %d events dropped by the hub", r.path, n)
	}
}

// Flush commits all buffered events in one transaction.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning trace transaction: %w", err)
	}
	eventStmt := tx.Stmt(r.eventStmt)
	runStmt := tx.Stmt(r.runStmt)
	for _, ev := range r.pending {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding event %d: %w", ev.Seq, err)
		}
		var wall int64
		if !ev.WallClock.IsZero() {
			wall = ev.WallClock.UnixNano()
		}
		if _, err := eventStmt.Exec(
			ev.Seq,
			ev.RunID,
			ev.Timestamp,
			wall,
			string(ev.Type),
			ev.PartID(),
			string(data),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event %d: %w", ev.Seq, err)
		}
		if isRunEnd(ev.Type) {
			if _, err := runStmt.Exec(
				ev.RunID,
				ev.Timestamp,
				ev.Type == event.TypeSimulationStopped,
				string(data),
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("inserting run %s: %w", ev.RunID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace transaction: %w", err)
	}
	r.written += len(r.pending)
	r.pending = r.pending[:0]
	return nil
}

// Close flushes and closes the database. Safe to call more than once.
func (r *SQLiteRecorder) Close() error {
	r.closeOnce.Do(func() {
		if err := r.Flush(); err != nil {
			r.closeErr = err
		}
		r.eventStmt.Close()
		r.runStmt.Close()
		if err := r.db.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}

// ListEvents returns the stored events of runID in emission order. An
// empty runID lists every run.
func (r *SQLiteRecorder) ListEvents(runID string) ([]StoredEvent, error) {
	return listEvents(r.db, runID)
}

// ListRuns returns every finished run recorded in the database.
func (r *SQLiteRecorder) ListRuns() ([]StoredRun, error) {
	return listRuns(r.db)
}

func isRunEnd(t event.Type) bool {
	return t == event.TypeSimulationCompleted || t == event.TypeSimulationStopped
}

func (r *SQLiteRecorder) createTables() error {
	for _, stmt := range []string{
		`CREATE TABLE events
		(
			seq        INTEGER      NOT NULL,
			run_id     VARCHAR(40)  NOT NULL,
			timestamp  FLOAT        NOT NULL,
			wall_clock INTEGER      NOT NULL,
			type       VARCHAR(40)  NOT NULL,
			part_id    VARCHAR(40)  NOT NULL DEFAULT '',
			data       TEXT         NOT NULL
		);`,
		`CREATE INDEX events_run_id_seq_index ON events (run_id, seq);`,
		`CREATE INDEX events_part_id_index ON events (part_id);`,
		`CREATE INDEX events_type_index ON events (type);`,
		`CREATE TABLE runs
		(
			run_id        VARCHAR(40) NOT NULL PRIMARY KEY,
			end_time      FLOAT       NOT NULL,
			stopped_early BOOLEAN     NOT NULL,
			statistics    TEXT        NOT NULL
		);`,
	} {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating trace schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) prepareStatements() error {
	var err error
	r.eventStmt, err = r.db.Prepare(
		`INSERT INTO events (seq, run_id, timestamp, wall_clock, type, part_id, data) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	r.runStmt, err = r.db.Prepare(
		`INSERT OR REPLACE INTO runs (run_id, end_time, stopped_early, statistics) VALUES (?, ?, ?, ?)`)
	if err != nil {
		r.eventStmt.Close()
		return fmt.Errorf("preparing run insert: %w", err)
	}
	return nil
}
