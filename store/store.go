/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store provides the durable key/value backends used for session
// progress, submission markers and aggregated round stats.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is a goroutine-safe string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Kind is one of memory, sqlite, postgres, mysql or redis.
	Kind string

	// Path is the sqlite database file.
	Path string

	// URL is the postgres or mysql DSN, or the redis URL.
	URL string

	// TTL expires redis keys; zero keeps them forever.
	TTL time.Duration
}

// Open connects to the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Kind) {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return OpenSQL(ctx, NewSQLiteDialect(), DialectConfig{Path: opts.Path})
	case "postgres", "postgresql":
		return OpenSQL(ctx, NewPostgresDialect(), DialectConfig{URL: opts.URL})
	case "mysql":
		return OpenSQL(ctx, NewMySQLDialect(), DialectConfig{URL: opts.URL})
	case "redis":
		return OpenRedis(ctx, opts.URL, opts.TTL)
	}
	return nil, fmt.Errorf("unsupported store type: %s", opts.Kind)
}
