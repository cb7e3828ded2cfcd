/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

const sessionPrefix = "session:"

// SessionKey is the store key holding the progress for k.
func SessionKey(k Key) string {
	return sessionPrefix + k.String()
}

// Record is the persisted form of a session. Answer ties the progress to the
// round it was played against.
type Record struct {
	Answer   string   `json:"answer"`
	Progress Progress `json:"progress"`
}

// LoadRecord reads the persisted record for k. A missing record is (nil, nil).
func LoadRecord(ctx context.Context, store Store, k Key) (*Record, error) {
	key := SessionKey(k)

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, &PersistenceError{Op: "get", StoreKey: key, Err: err}
	}
	if !ok {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, &PersistenceError{Op: "decode", StoreKey: key, Err: err}
	}
	if rec.Progress.FlippedTiles == nil {
		rec.Progress.FlippedTiles = []Tile{}
	}

	return &rec, nil
}

// ClearAll removes every persisted session from store. Submission markers
// are kept.
func ClearAll(ctx context.Context, store Store) error {
	keys, err := store.Keys(ctx, sessionPrefix)
	if err != nil {
		return &PersistenceError{Op: "list", StoreKey: sessionPrefix + "*", Err: err}
	}

	var errs []error
	for _, key := range keys {
		if err := store.Remove(ctx, key); err != nil {
			errs = append(errs, &PersistenceError{Op: "remove", StoreKey: key, Err: err})
		}
	}

	return errors.Join(errs...)
}

// Deps are the collaborators a Session needs.
type Deps struct {
	Store            Store
	Submitter        *Submitter
	Scheduler        Scheduler
	Policy           Policy
	PhotoReturnDelay time.Duration
	Logger           *slog.Logger
	Metrics          Metrics

	// OnChange is called after a scheduled task changes the session.
	OnChange func()
}

// Session owns one player's progress on one round. It is not safe for
// concurrent use; the Controller serializes every call.
type Session struct {
	round    *Round
	progress Progress
	board    *Board
	deps     Deps

	message      string
	advanced     bool
	submitted    bool
	cancelReturn func()
}

// NewSession starts a fresh session on r.
func NewSession(r *Round, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics{}
	}
	if deps.Policy == "" {
		deps.Policy = PolicyTwoStrike
	}

	p := NewProgress()

	return &Session{
		round:    r,
		progress: p,
		board:    NewBoard(&p),
		deps:     deps,
	}
}

func (s *Session) Key() Key { return s.round.Key() }

func (s *Session) Round() *Round { return s.round }

// Progress returns a copy of the current progress.
func (s *Session) Progress() Progress { return s.progress.Clone() }

func (s *Session) View() View { return s.board.View() }

// Message is the feedback from the most recent guess. It is not persisted.
func (s *Session) Message() string { return s.message }

// Advanced reports whether any event has changed the session since it was
// created or restored.
func (s *Session) Advanced() bool { return s.advanced }

// Restore loads and applies the persisted record, if any.
func (s *Session) Restore(ctx context.Context) bool {
	rec, err := LoadRecord(ctx, s.deps.Store, s.Key())
	if err != nil {
		s.deps.Logger.Warn("session restore failed", "key", s.Key().String(), "error", err)
		return false
	}
	return s.ApplyRecord(ctx, rec)
}

// ApplyRecord replaces the session's progress with rec when rec was played
// against the same answer. A record for a different answer is stale and is
// deleted. Records never override a session that has already advanced.
func (s *Session) ApplyRecord(ctx context.Context, rec *Record) bool {
	if rec == nil || s.advanced {
		return false
	}

	if rec.Answer != s.round.Player.Name {
		key := SessionKey(s.Key())
		if err := s.deps.Store.Remove(ctx, key); err != nil {
			s.deps.Logger.Warn("stale session not removed", "key", key,
				"error", &PersistenceError{Op: "remove", StoreKey: key, Err: err})
		}
		return false
	}

	s.progress = rec.Progress.Clone()
	s.board = NewBoard(&s.progress)

	return true
}

// Guess evaluates a raw guess.
func (s *Session) Guess(ctx context.Context, raw string) GuessResult {
	res := EvaluateGuess(&s.progress, s.round.Player.Name, raw, s.deps.Policy)
	if res.Outcome != OutcomeRejected && res.Outcome != OutcomeIgnored {
		s.deps.Metrics.GuessEvaluated(s.round.Sport, res.Outcome)
	}

	if res.Message != "" {
		s.message = res.Message
	}

	if !res.Mutated() {
		return res
	}

	s.advanced = true
	s.persist(ctx)

	if res.Completes() {
		s.complete()
	}

	return res
}

// Click applies a tile click and schedules the end of a photo return.
func (s *Session) Click(ctx context.Context, t Tile) ClickResult {
	res := s.board.Click(&s.progress, s.round.Player.Name, t)

	if res.Effect == EffectFlipped {
		s.deps.Metrics.TileFlipped(s.round.Sport, t, res.Scored)
	}

	if res.Effect == EffectPhotoShow || res.Effect == EffectReturning {
		s.stopReturn()
	}
	if res.Effect == EffectReturning {
		s.scheduleReturn(res.Generation)
	}

	if res.Changed {
		s.advanced = true
		s.persist(ctx)
	}

	return res
}

// GiveUp ends the round and reveals the answer.
func (s *Session) GiveUp(ctx context.Context) bool {
	if !GiveUp(&s.progress) {
		return false
	}

	s.message = "The mystery athlete was " + s.round.Player.Name + "."
	s.advanced = true
	s.persist(ctx)
	s.complete()

	return true
}

// ShareText renders the share grid for the current progress.
func (s *Session) ShareText() string {
	return ShareText(s.Key(), &s.progress)
}

// Close cancels pending timers.
func (s *Session) Close() {
	s.stopReturn()
}

// FinishReturn ends a ReturningFromPhoto transition started with gen.
func (s *Session) FinishReturn(gen uint64) bool {
	if !s.board.FinishReturn(gen) {
		return false
	}
	s.cancelReturn = nil
	return true
}

func (s *Session) scheduleReturn(gen uint64) {
	if s.deps.Scheduler == nil {
		return
	}

	s.cancelReturn = s.deps.Scheduler.Schedule(s.deps.PhotoReturnDelay, func() {
		if s.FinishReturn(gen) && s.deps.OnChange != nil {
			s.deps.OnChange()
		}
	})
}

func (s *Session) stopReturn() {
	if s.cancelReturn != nil {
		s.cancelReturn()
		s.cancelReturn = nil
	}
}

func (s *Session) complete() {
	s.deps.Metrics.RoundCompleted(s.round.Sport, s.progress.CompletionReason, s.progress.Score)

	if s.submitted || s.deps.Submitter == nil {
		return
	}
	s.submitted = true
	s.deps.Submitter.Fire(s.Key(), NewResult(&s.progress))
}

// SubmitPending fires a submission for a restored, completed round whose
// earlier attempt may have failed. The marker keeps it idempotent.
func (s *Session) SubmitPending() {
	if !s.progress.Completed() || s.submitted || s.deps.Submitter == nil {
		return
	}
	s.submitted = true
	s.deps.Submitter.Fire(s.Key(), NewResult(&s.progress))
}

func (s *Session) persist(ctx context.Context) {
	key := SessionKey(s.Key())

	data, err := json.Marshal(Record{Answer: s.round.Player.Name, Progress: s.progress})
	if err != nil {
		s.deps.Logger.Error("session not encoded", "key", key, "error", err)
		return
	}

	if err := s.deps.Store.Set(ctx, key, string(data)); err != nil {
		s.deps.Logger.Warn("session not persisted", "key", key,
			"error", &PersistenceError{Op: "set", StoreKey: key, Err: err})
	}
}
