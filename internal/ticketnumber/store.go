package ticketnumber

import (
	"context"
	"fmt"
	"sync"

	"github.com/rodrigofdzr/TARdesk/internal/database"
)

// DBStore keeps counters in the ticket_number_counters table. Increments use
// a dialect-specific atomic upsert so two concurrent ticket creations never
// read the same counter value:
//
//	Postgres: INSERT ... ON CONFLICT (scope) DO UPDATE ... RETURNING counter
//	MySQL: INSERT ... ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(...)
//
// Other drivers fall back to a write-first transaction that holds the row
// lock across the read-back.
type DBStore struct {
	db *database.DB
}

func NewDBStore(db *database.DB) *DBStore { return &DBStore{db: db} }

func (s *DBStore) Add(ctx context.Context, scope string, offset int64) (int64, error) {
	if offset < 1 {
		offset = 1
	}
	switch s.db.Driver() {
	case "postgres":
		query := `INSERT INTO ticket_number_counters (scope, counter)
			VALUES ($1, $2)
			ON CONFLICT (scope) DO UPDATE SET counter = ticket_number_counters.counter + EXCLUDED.counter
			RETURNING counter`
		var counter int64
		if err := s.db.QueryRowContext(ctx, query, scope, offset).Scan(&counter); err != nil {
			return 0, fmt.Errorf("increment counter: %w", err)
		}
		return counter, nil
	case "mysql":
		// LAST_INSERT_ID wraps both branches so the value rides back on the
		// Exec result, staying on the same pooled connection.
		query := `INSERT INTO ticket_number_counters (scope, counter)
			VALUES (?, LAST_INSERT_ID(?))
			ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + ?)`
		res, err := s.db.ExecContext(ctx, query, scope, offset, offset)
		if err != nil {
			return 0, fmt.Errorf("increment counter: %w", err)
		}
		return res.LastInsertId()
	}
	return s.addTx(ctx, scope, offset)
}

// addTx serializes the increment through a transaction for drivers without
// an atomic upsert-and-read. The UPDATE runs first so the row lock is held
// before the counter is read back.
func (s *DBStore) addTx(ctx context.Context, scope string, offset int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	update := s.db.ConvertPlaceholders(`UPDATE ticket_number_counters SET counter = counter + $1 WHERE scope = $2`)
	res, err := tx.ExecContext(ctx, update, offset, scope)
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		insert := s.db.ConvertPlaceholders(`INSERT INTO ticket_number_counters (scope, counter) VALUES ($1, $2)`)
		if _, err := tx.ExecContext(ctx, insert, scope, offset); err != nil {
			if database.IsUniqueViolation(err) {
				// Lost the first-insert race; the row exists now, so the
				// retry takes the UPDATE branch.
				tx.Rollback()
				return s.addTx(ctx, scope, offset)
			}
			return 0, fmt.Errorf("insert counter: %w", err)
		}
	}

	var counter int64
	query := s.db.ConvertPlaceholders(`SELECT counter FROM ticket_number_counters WHERE scope = $1`)
	if err := tx.QueryRowContext(ctx, query, scope).Scan(&counter); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return counter, nil
}

// MemoryStore is an in-process counter store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

func (s *MemoryStore) Add(_ context.Context, scope string, offset int64) (int64, error) {
	if offset < 1 {
		offset = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scope] += offset
	return s.counters[scope], nil
}
