/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// SQL stores keys in a single kv_store table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	closed  atomic.Bool
}

// OpenSQL connects, configures the pool and creates the table if needed.
func OpenSQL(ctx context.Context, dialect Dialect, config DialectConfig) (*SQL, error) {
	db, err := sql.Open(dialect.DriverName(), dialect.DSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := dialect.ConfigureConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, dialect.CreateTableQuery()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_store: %w", err)
	}

	return &SQL{db: db, dialect: dialect}, nil
}

func (s *SQL) query(q string) string {
	return s.dialect.RewriteQuery(q)
}

// check reports ErrClosed for a closed store, before or during a call.
func (s *SQL) check(err error) error {
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) {
		return ErrClosed
	}
	return err
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.check(nil); err != nil {
		return "", false, err
	}

	var value string

	err := s.db.QueryRowContext(ctx, s.query("SELECT kv_value FROM kv_store WHERE kv_key = ?"), key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, s.check(err)
	}

	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if err := s.check(nil); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.query(s.dialect.UpsertQuery()), key, value)
	if err != nil {
		return s.check(err)
	}

	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	if err := s.check(nil); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.query("DELETE FROM kv_store WHERE kv_key = ?"), key)
	if err != nil {
		return s.check(err)
	}

	return nil
}

// Keys returns matching keys in lexical order.
func (s *SQL) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(nil); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		s.query("SELECT kv_key FROM kv_store WHERE kv_key LIKE ? ESCAPE '!' ORDER BY kv_key"),
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, s.check(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		// LIKE ignores case on some backends.
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	return keys, rows.Err()
}

// Close releases the pool. Every later call returns ErrClosed.
func (s *SQL) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
