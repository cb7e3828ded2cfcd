/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const markerPrefix = "submitted:"

// MarkerKey is the store key of the idempotency marker for k.
func MarkerKey(k Key) string {
	return markerPrefix + k.String()
}

// Result is the payload submitted when a round completes.
type Result struct {
	Score            int              `json:"score"`
	Completed        bool             `json:"completed"`
	CompletionReason CompletionReason `json:"completionReason"`
	FlippedTiles     []Tile           `json:"flippedTiles"`
	FirstTileFlipped Tile             `json:"firstTileFlipped"`
	LastTileFlipped  Tile             `json:"lastTileFlipped"`
	IncorrectGuesses int              `json:"incorrectGuesses"`
}

// NewResult builds the submission payload from progress. Tiles flipped after
// completion are recap flips and are left out.
func NewResult(p *Progress) Result {
	scored := p.FlippedTiles[:min(p.TilesFlippedCount, len(p.FlippedTiles))]

	return Result{
		Score:            p.Score,
		Completed:        p.Solved(),
		CompletionReason: p.CompletionReason,
		FlippedTiles:     slices.Clone(scored),
		FirstTileFlipped: p.FirstTileFlipped,
		LastTileFlipped:  p.LastTileFlipped,
		IncorrectGuesses: p.IncorrectGuesses,
	}
}

// Submitter sends each round's result at most once, guarded by a marker in
// the store that is written only after the transport acknowledges.
type Submitter struct {
	store     Store
	transport Transport
	logger    *slog.Logger
	metrics   Metrics
	timeout   time.Duration

	mu       sync.Mutex
	inflight map[Key]bool
	wg       sync.WaitGroup
}

func NewSubmitter(store Store, transport Transport, logger *slog.Logger, metrics Metrics, timeout time.Duration) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Submitter{
		store:     store,
		transport: transport,
		logger:    logger,
		metrics:   metrics,
		timeout:   timeout,
		inflight:  make(map[Key]bool),
	}
}

// Submit delivers res for k unless it has already been delivered or is being
// delivered right now. It reports whether this call reached the transport
// successfully.
func (s *Submitter) Submit(ctx context.Context, k Key, res Result) (bool, error) {
	s.mu.Lock()
	if s.inflight[k] {
		s.mu.Unlock()
		return false, nil
	}
	s.inflight[k] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, k)
		s.mu.Unlock()
	}()

	marker := MarkerKey(k)

	_, done, err := s.store.Get(ctx, marker)
	if err != nil {
		// Without the marker we cannot rule out a duplicate, so hold off and
		// let a later session try again.
		return false, &PersistenceError{Op: "get", StoreKey: marker, Err: err}
	}
	if done {
		return false, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.transport.SubmitResult(ctx, k, res); err != nil {
		s.metrics.ResultSubmitted(k.Sport, err)
		return false, &SubmissionError{Key: k, Err: err}
	}
	s.metrics.ResultSubmitted(k.Sport, nil)

	if err := s.store.Set(ctx, marker, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return true, &PersistenceError{Op: "set", StoreKey: marker, Err: err}
	}

	return true, nil
}

// Fire submits in the background. Errors are logged and never retried.
func (s *Submitter) Fire(k Key, res Result) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		sent, err := s.Submit(context.Background(), k, res)
		switch {
		case err != nil:
			s.logger.Warn("result submission failed", "key", k.String(), "error", err)
		case sent:
			s.logger.Info("result submitted", "key", k.String(), "score", res.Score)
		default:
			s.logger.Debug("result already submitted", "key", k.String())
		}
	}()
}

// Wait blocks until every fired submission has finished.
func (s *Submitter) Wait() {
	s.wg.Wait()
}
