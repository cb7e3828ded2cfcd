/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect hides the differences between the supported SQL databases.
type Dialect interface {
	// DriverName is the name passed to sql.Open.
	DriverName() string

	DSN(config DialectConfig) string

	// RewriteQuery converts ? placeholders where the driver wants another
	// syntax.
	RewriteQuery(query string) string

	ConfigureConnection(db *sql.DB) error

	CreateTableQuery() string

	// UpsertQuery inserts or replaces a key; it takes the key then the value.
	UpsertQuery() string
}

// DialectConfig holds connection settings.
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
