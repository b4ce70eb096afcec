package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/lazypower/degrade/internal/counter"
)

const lockStripes = 64

// keyLocks serializes updates per key. Distinct keys may share a stripe.
type keyLocks [lockStripes]sync.Mutex

func (l *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &l[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// slot is a counter.Slot bound to one key inside an open transaction.
type slot struct {
	ctx context.Context
	tx  *sql.Tx
	key string
}

func (s *slot) Get() (*counter.Entry, error) {
	var e counter.Entry
	err := s.tx.QueryRowContext(s.ctx,
		`SELECT type, encver, data FROM keyspace WHERE name = ?`, s.key,
	).Scan(&e.Type, &e.Version, &e.Data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	return &e, nil
}

func (s *slot) Put(e counter.Entry) error {
	_, err := s.tx.ExecContext(s.ctx, `
		INSERT INTO keyspace (name, type, encver, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			encver = excluded.encver,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, s.key, e.Type, e.Version, e.Data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put key: %w", err)
	}
	return nil
}

func (s *slot) Delete() error {
	if _, err := s.tx.ExecContext(s.ctx, `DELETE FROM keyspace WHERE name = ?`, s.key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func (s *slot) Replicate(argv ...string) error {
	return appendJournal(s.ctx, s.tx, argv)
}

// Update runs fn with exclusive access to key inside a transaction.
// The transaction is rolled back if fn returns an error.
func (db *DB) Update(ctx context.Context, key string, fn func(counter.Slot) error) error {
	unlock := db.locks.lock(key)
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	if err := fn(&slot{ctx: ctx, tx: tx, key: key}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// Scan calls fn for every key in name order.
func (db *DB) Scan(ctx context.Context, fn func(key string, e counter.Entry) error) error {
	rows, err := db.QueryContext(ctx, `SELECT name, type, encver, data FROM keyspace ORDER BY name`)
	if err != nil {
		return fmt.Errorf("scan keyspace: %w", err)
	}

	// Rows are collected first so fn may call back into the store.
	type row struct {
		key string
		e   counter.Entry
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.e.Type, &r.e.Version, &r.e.Data); err != nil {
			rows.Close()
			return fmt.Errorf("scan key: %w", err)
		}
		all = append(all, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range all {
		if err := fn(r.key, r.e); err != nil {
			return err
		}
	}
	return nil
}

// KeyType returns the type name stored at key, or "" if the key does not exist.
func (db *DB) KeyType(ctx context.Context, key string) (string, error) {
	var typ string
	err := db.QueryRowContext(ctx, `SELECT type FROM keyspace WHERE name = ?`, key).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("key type: %w", err)
	}
	return typ, nil
}

// Len returns the number of stored keys.
func (db *DB) Len(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyspace`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendJournal(ctx context.Context, ex execer, argv []string) error {
	b, err := json.Marshal(argv)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO journal (argv, created_at) VALUES (?, ?)`, string(b), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
