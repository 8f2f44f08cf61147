// Package journal records route queries and executor events in SQLite. Writes
// are queued and applied by a single writer goroutine in batched
// transactions; a full queue drops records rather than stalling the tick loop.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// RouteRecord describes one completed search.
type RouteRecord struct {
	Actor    string        `json:"actor"`
	Start    [3]int        `json:"start"`
	Goal     [3]int        `json:"goal"`
	Mode     string        `json:"mode"`
	Outcome  string        `json:"outcome"`
	Cost     float64       `json:"cost"`
	Steps    int           `json:"steps"`
	Expanded int           `json:"expanded"`
	Elapsed  time.Duration `json:"elapsedNs"`
	At       time.Time     `json:"at"`
}

// EventRecord describes one executor state change.
type EventRecord struct {
	Actor  string    `json:"actor"`
	Kind   string    `json:"kind"`
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
	Tick   int64     `json:"tick"`
	Index  int       `json:"index"`
	Steps  int       `json:"steps"`
	Cost   float64   `json:"cost"`
	At     time.Time `json:"at"`
}

type reqKind int

const (
	reqRoute reqKind = iota + 1
	reqEvent
	reqSync
)

type req struct {
	kind  reqKind
	route RouteRecord
	event EventRecord
	done  chan struct{}
}

type Journal struct {
	db     *sql.DB
	logger *log.Logger

	// mu orders sends on ch against closing it.
	mu     sync.RWMutex
	ch     chan req
	closed bool
	wg     sync.WaitGroup
	once   sync.Once

	dropped       atomic.Uint64
	flushInterval time.Duration
}

const defaultBufferSize = 256

func Open(path string, bufferSize int, flushInterval time.Duration, logger *log.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "journal ", log.LstdFlags|log.Lmicroseconds)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{
		db:            db,
		logger:        logger,
		ch:            make(chan req, bufferSize),
		flushInterval: flushInterval,
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("journal pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor TEXT NOT NULL,
			start_x INTEGER NOT NULL,
			start_y INTEGER NOT NULL,
			start_z INTEGER NOT NULL,
			goal_x INTEGER NOT NULL,
			goal_y INTEGER NOT NULL,
			goal_z INTEGER NOT NULL,
			mode TEXT NOT NULL,
			outcome TEXT NOT NULL,
			cost REAL NOT NULL,
			steps INTEGER NOT NULL,
			expanded INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_routes_actor ON routes(actor, id);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL,
			tick INTEGER NOT NULL,
			step_index INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			cost REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.ch)
		j.mu.Unlock()
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

// Dropped reports how many records were discarded because the queue was full.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

func (j *Journal) RecordRoute(r RouteRecord) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	j.enqueue(req{kind: reqRoute, route: r})
}

func (j *Journal) RecordEvent(e EventRecord) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	j.enqueue(req{kind: reqEvent, event: e})
}

func (j *Journal) enqueue(r req) {
	if j == nil {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- r:
	default:
		j.dropped.Add(1)
	}
}

// Sync blocks until every record queued before the call is committed.
func (j *Journal) Sync(ctx context.Context) error {
	if j == nil {
		return nil
	}
	done := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.ch <- req{kind: reqSync, done: done}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) loop() {
	ctx := context.Background()
	insertRoute, _ := j.db.Prepare(`INSERT INTO routes(actor,start_x,start_y,start_z,goal_x,goal_y,goal_z,mode,outcome,cost,steps,expanded,elapsed_us,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := j.db.Prepare(`INSERT INTO events(actor,kind,status,reason,tick,step_index,steps,cost,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRoute != nil {
			_ = insertRoute.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)
	begin := func() bool {
		if tx != nil {
			return true
		}
		txx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			j.logger.Printf("begin journal transaction: %v", err)
			return false
		}
		tx = txx
		opCount = 0
		return true
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			j.logger.Printf("commit journal transaction: %v", err)
		}
		tx = nil
		opCount = 0
	}

	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			commit()
		case r, ok := <-j.ch:
			if !ok {
				commit()
				return
			}
			if r.kind == reqSync {
				commit()
				close(r.done)
				continue
			}
			if !begin() {
				j.dropped.Add(1)
				continue
			}
			if err := j.apply(tx, insertRoute, insertEvent, r); err != nil {
				j.logger.Printf("journal write: %v", err)
				continue
			}
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		}
	}
}

func (j *Journal) apply(tx *sql.Tx, insertRoute, insertEvent *sql.Stmt, r req) error {
	switch r.kind {
	case reqRoute:
		if insertRoute == nil {
			return fmt.Errorf("route statement unavailable")
		}
		rt := r.route
		_, err := tx.Stmt(insertRoute).Exec(
			rt.Actor,
			rt.Start[0], rt.Start[1], rt.Start[2],
			rt.Goal[0], rt.Goal[1], rt.Goal[2],
			rt.Mode, rt.Outcome, rt.Cost, rt.Steps, rt.Expanded,
			rt.Elapsed.Microseconds(),
			rt.At.UTC().Format(time.RFC3339Nano),
		)
		return err
	case reqEvent:
		if insertEvent == nil {
			return fmt.Errorf("event statement unavailable")
		}
		ev := r.event
		_, err := tx.Stmt(insertEvent).Exec(
			ev.Actor, ev.Kind, ev.Status, ev.Reason, ev.Tick, ev.Index, ev.Steps, ev.Cost,
			ev.At.UTC().Format(time.RFC3339Nano),
		)
		return err
	}
	return nil
}
