package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // register sqlite driver

	"smartgate_go/internal/events"
	"smartgate_go/internal/state"
)

const (
	maxLogRows = 2000
	maxKeyRows = 200
)

const schema = `
CREATE TABLE IF NOT EXISTS console_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms INTEGER NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS received_key (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code INTEGER NOT NULL,
	bit_length INTEGER NOT NULL,
	protocol INTEGER NOT NULL,
	device_ts INTEGER NOT NULL,
	received_ms INTEGER NOT NULL
);`

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// Journal keeps console entries and received keys across restarts. Writes
// are queued and applied by one goroutine so callers never wait on disk.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan writeCmd
	wg     sync.WaitGroup
}

func Open(ctx context.Context, path string, logger zerolog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	j := &Journal{
		db:    db,
		log:   logger,
		queue: make(chan writeCmd, 256),
	}
	j.wg.Add(1)
	go j.run()
	return j, nil
}

func (j *Journal) run() {
	defer j.wg.Done()
	for cmd := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cmd.fn(ctx); err != nil {
			j.log.Error().Err(err).Str("cmd", cmd.name).Msg("journal write failed")
		}
		cancel()
	}
}

func (j *Journal) enqueue(name string, fn func(context.Context) error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- writeCmd{name: name, fn: fn}:
	default:
		j.log.Warn().Str("cmd", name).Msg("journal queue full, entry dropped")
	}
}

// RecordLog queues e for persistence.
func (j *Journal) RecordLog(e state.LogEntry) {
	j.enqueue("log", func(ctx context.Context) error { return j.AppendLog(ctx, e) })
}

// RecordKey queues k for persistence.
func (j *Journal) RecordKey(k state.RecentKey) {
	j.enqueue("key", func(ctx context.Context) error { return j.AppendKey(ctx, k) })
}

// Clear queues removal of the console history.
func (j *Journal) Clear() {
	j.enqueue("clear", j.ClearLogs)
}

func (j *Journal) AppendLog(ctx context.Context, e state.LogEntry) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO console_log (at_ms, severity, message) VALUES (?, ?, ?)`,
		e.At.UnixMilli(), string(e.Severity), e.Message,
	); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	if _, err := j.db.ExecContext(ctx,
		`DELETE FROM console_log WHERE id <= (SELECT MAX(id) FROM console_log) - ?`, maxLogRows,
	); err != nil {
		return fmt.Errorf("prune log: %w", err)
	}
	return nil
}

func (j *Journal) AppendKey(ctx context.Context, k state.RecentKey) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO received_key (code, bit_length, protocol, device_ts, received_ms) VALUES (?, ?, ?, ?, ?)`,
		int64(k.Code), k.BitLength, k.Protocol, k.Timestamp, k.ReceivedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	if _, err := j.db.ExecContext(ctx,
		`DELETE FROM received_key WHERE id <= (SELECT MAX(id) FROM received_key) - ?`, maxKeyRows,
	); err != nil {
		return fmt.Errorf("prune keys: %w", err)
	}
	return nil
}

func (j *Journal) ClearLogs(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM console_log`); err != nil {
		return fmt.Errorf("clear log: %w", err)
	}
	return nil
}

// LoadLogs returns up to limit entries, newest first.
func (j *Journal) LoadLogs(ctx context.Context, limit int) ([]state.LogEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT at_ms, severity, message FROM console_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var out []state.LogEntry
	for rows.Next() {
		var (
			atMS     int64
			severity string
			message  string
		)
		if err := rows.Scan(&atMS, &severity, &message); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, state.LogEntry{
			At:       time.UnixMilli(atMS),
			Severity: events.ParseSeverity(severity),
			Message:  message,
		})
	}
	return out, rows.Err()
}

// LoadRecentKeys returns up to limit keys, newest first.
func (j *Journal) LoadRecentKeys(ctx context.Context, limit int) ([]state.RecentKey, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT code, bit_length, protocol, device_ts, received_ms FROM received_key ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var out []state.RecentKey
	for rows.Next() {
		var (
			code       int64
			k          state.RecentKey
			receivedMS int64
		)
		if err := rows.Scan(&code, &k.BitLength, &k.Protocol, &k.Timestamp, &receivedMS); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		k.Code = uint64(code)
		k.ReceivedAt = time.UnixMilli(receivedMS)
		out = append(out, k)
	}
	return out, rows.Err()
}

// Close flushes queued writes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	return j.db.Close()
}
