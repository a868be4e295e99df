// Package audit keeps a log of dispatch outcomes. Entries carry routing
// metadata only; query and answer text are never stored.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Entry is one dispatch outcome.
type Entry struct {
	RequestID  string
	SessionID  string
	Model      string
	Mode       string
	Complexity string
	Type       string
	Urgency    string
	// Status is "ok" or the error kind, e.g. "agent_failure".
	Status     string
	Passes     int
	DurationMs int64
	CreatedAt  time.Time
}

// Recorder accepts dispatch outcomes.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertEntry = `
	INSERT INTO dispatch_log (
		request_id, session_id, model, mode, complexity, task_type, urgency,
		status, passes, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const writeTimeout = 2 * time.Second

// PGStore writes entries to the dispatch_log table. A *pgxpool.Pool satisfies
// its connection requirement.
type PGStore struct {
	db execer
}

func NewPGStore(db execer) *PGStore {
	return &PGStore{db: db}
}

// Insert writes e synchronously.
func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, insertEntry,
		e.RequestID, e.SessionID, e.Model, e.Mode, e.Complexity, e.Type, e.Urgency,
		e.Status, e.Passes, e.DurationMs, e.CreatedAt,
	)
	return err
}

// Async writes entries from a single background goroutine so that recording
// never blocks a dispatch. When the buffer is full new entries are dropped.
type Async struct {
	store   *PGStore
	entries chan Entry
	wg      sync.WaitGroup
	once    sync.Once
}

func NewAsync(store *PGStore, buffer int) *Async {
	a := &Async{store: store, entries: make(chan Entry, max(buffer, 1))}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for e := range a.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := a.store.Insert(ctx, e); err != nil {
			slog.Warn("audit write failed", "request_id", e.RequestID, "error", err)
		}
		cancel()
	}
}

// Record queues e. It must not be called after Close.
func (a *Async) Record(_ context.Context, e Entry) {
	select {
	case a.entries <- e:
	default:
		slog.Warn("audit buffer full, dropping entry", "request_id", e.RequestID)
	}
}

// Close flushes queued entries and stops the writer.
func (a *Async) Close() {
	a.once.Do(func() { close(a.entries) })
	a.wg.Wait()
}
