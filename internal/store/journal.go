package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Journal returns every journaled command in append order.
func (db *DB) Journal(ctx context.Context) ([][]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT argv FROM journal ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var cmds [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		var argv []string
		if err := json.Unmarshal([]byte(raw), &argv); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		cmds = append(cmds, argv)
	}
	return cmds, rows.Err()
}

// ReplaceJournal atomically replaces the journal with cmds.
func (db *DB) ReplaceJournal(ctx context.Context, cmds [][]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear journal: %w", err)
	}
	for _, argv := range cmds {
		if err := appendJournal(ctx, tx, argv); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rewrite: %w", err)
	}
	return nil
}
