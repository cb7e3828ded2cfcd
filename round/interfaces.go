/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"context"
	"time"
)

// Store is a durable key/value store holding JSON strings.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Fetcher loads the round for a sport. An empty playDate means today.
type Fetcher interface {
	FetchRound(ctx context.Context, sport, playDate string) (*Round, error)
}

// Transport delivers a finished round's result to the backend.
type Transport interface {
	SubmitResult(ctx context.Context, key Key, res Result) error
}

// Scheduler runs fn once after d. The returned cancel is best effort.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// Sink receives share text, e.g. a client clipboard.
type Sink interface {
	Copy(text string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string) error

func (f SinkFunc) Copy(text string) error { return f(text) }

// Metrics observes engine events.
type Metrics interface {
	GuessEvaluated(sport string, outcome Outcome)
	TileFlipped(sport string, tile Tile, scored bool)
	RoundCompleted(sport string, reason CompletionReason, score int)
	ResultSubmitted(sport string, err error)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) GuessEvaluated(string, Outcome) {}
func (NoopMetrics) TileFlipped(string, Tile, bool) {}
func (NoopMetrics) RoundCompleted(string, CompletionReason, int) {}
func (NoopMetrics) ResultSubmitted(string, error) {}

type timeScheduler struct{}

func (timeScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
