/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Status is the controller's loading state for the active round.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// TileView is a tile as the presentation layer sees it. Fact is only filled
// in once the tile is flipped.
type TileView struct {
	Name    Tile   `json:"name"`
	Flipped bool   `json:"flipped"`
	Fact    string `json:"fact,omitempty"`
}

// State is a snapshot of everything the presentation layer may render.
type State struct {
	Key      Key         `json:"key"`
	Status   Status      `json:"status"`
	Error    string      `json:"error,omitempty"`
	Progress *Progress   `json:"progress,omitempty"`
	Tiles    []TileView  `json:"tiles,omitempty"`
	View     View        `json:"view,omitempty"`
	Message  string      `json:"message,omitempty"`
	Answer   string      `json:"answer,omitempty"`
	Stats    *RoundStats `json:"stats,omitempty"`
	Share    string      `json:"share,omitempty"`
	Copied   bool        `json:"copied,omitempty"`
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Fetcher   Fetcher
	Transport Transport
	Store     Store
	Sink      Sink
	Scheduler Scheduler
	Logger    *slog.Logger
	Metrics   Metrics
	Policy    Policy

	PhotoReturnDelay  time.Duration
	CopiedBannerDelay time.Duration
	SubmitTimeout     time.Duration

	// OnChange receives a snapshot after every event that changed state. It
	// runs on the controller's loop and must not block.
	OnChange func(State)
}

type fetchResult struct {
	key   Key
	round *Round
	err   error
}

type restoreResult struct {
	key Key
	rec *Record
	err error
}

// Controller is one player's event loop. Every exported method may be called
// from any goroutine; the work itself runs serially on Run's goroutine.
type Controller struct {
	cfg       ControllerConfig
	submitter *Submitter

	events chan func()
	done   chan struct{}

	active         Key
	status         Status
	fetchErr       error
	session        *Session
	pendingRestore *Record

	copied       bool
	copiedGen    uint64
	cancelCopied func()
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = timeScheduler{}
	}

	c := &Controller{
		cfg:    cfg,
		events: make(chan func(), 64),
		done:   make(chan struct{}),
		status: StatusIdle,
	}

	if cfg.Transport != nil {
		c.submitter = NewSubmitter(cfg.Store, cfg.Transport, cfg.Logger, cfg.Metrics, cfg.SubmitTimeout)
	}

	return c
}

// Run processes events until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case fn := <-c.events:
			fn()
		case <-ctx.Done():
			if c.session != nil {
				c.session.Close()
			}
			c.stopCopied()
			return
		}
	}
}

// Wait blocks until background submissions have finished.
func (c *Controller) Wait() {
	if c.submitter != nil {
		c.submitter.Wait()
	}
}

func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Schedule implements Scheduler by running fn on the loop after d.
func (c *Controller) Schedule(d time.Duration, fn func()) func() {
	return c.cfg.Scheduler.Schedule(d, func() {
		c.post(fn)
	})
}

// State returns a snapshot taken on the loop, after every previously posted
// event has been handled.
func (c *Controller) State() State {
	reply := make(chan State, 1)
	if !c.post(func() { reply <- c.snapshot() }) {
		return State{Status: StatusIdle}
	}

	select {
	case st := <-reply:
		return st
	case <-c.done:
		return State{Status: StatusIdle}
	}
}

// Select makes (sport, playDate) the active round, fetching it and restoring
// any saved progress concurrently.
func (c *Controller) Select(sport, playDate string) {
	c.post(func() { c.selectRound(Key{Sport: sport, PlayDate: playDate}, false) })
}

// Retry refetches the active round after a fetch error.
func (c *Controller) Retry() {
	c.post(func() {
		if c.status == StatusError {
			c.selectRound(c.active, true)
		}
	})
}

func (c *Controller) Guess(raw string) {
	c.post(func() {
		if c.session == nil {
			return
		}
		res := c.session.Guess(context.Background(), raw)
		if res.Outcome != OutcomeRejected && res.Outcome != OutcomeIgnored {
			c.notify()
		}
	})
}

func (c *Controller) Click(t Tile) {
	c.post(func() {
		if c.session == nil {
			return
		}
		if res := c.session.Click(context.Background(), t); res.Changed {
			c.notify()
		}
	})
}

func (c *Controller) GiveUp() {
	c.post(func() {
		if c.session != nil && c.session.GiveUp(context.Background()) {
			c.notify()
		}
	})
}

// Share copies the share text to the sink and raises the copied banner.
func (c *Controller) Share() {
	c.post(func() {
		if c.session == nil {
			return
		}

		if c.cfg.Sink != nil {
			if err := c.cfg.Sink.Copy(c.session.ShareText()); err != nil {
				c.cfg.Logger.Warn("share text not copied", "error", err)
				return
			}
		}

		c.stopCopied()
		c.copied = true
		c.copiedGen++
		gen := c.copiedGen
		c.cancelCopied = c.Schedule(c.cfg.CopiedBannerDelay, func() {
			if gen != c.copiedGen || !c.copied {
				return
			}
			c.copied = false
			c.cancelCopied = nil
			c.notify()
		})

		c.notify()
	})
}

// Leave clears every saved session for this player.
func (c *Controller) Leave() {
	c.post(func() {
		if c.session != nil {
			c.session.Close()
		}
		c.stopCopied()

		if err := ClearAll(context.Background(), c.cfg.Store); err != nil {
			c.cfg.Logger.Warn("sessions not cleared", "error", err)
		}

		c.active = Key{}
		c.status = StatusIdle
		c.session = nil
		c.pendingRestore = nil
		c.fetchErr = nil
		c.notify()
	})
}

func (c *Controller) selectRound(k Key, force bool) {
	if !force && k == c.active && (c.status == StatusLoading || c.status == StatusReady) {
		return
	}

	if c.session != nil {
		c.session.Close()
	}
	c.stopCopied()

	c.active = k
	c.status = StatusLoading
	c.fetchErr = nil
	c.session = nil
	c.pendingRestore = nil

	if err := k.check(true); err != nil {
		c.status = StatusError
		c.fetchErr = &DataFetchError{Key: k, Err: err}
		c.notify()
		return
	}

	c.notify()

	go func() {
		r, err := c.cfg.Fetcher.FetchRound(context.Background(), k.Sport, k.PlayDate)
		c.post(func() { c.fetched(fetchResult{key: k, round: r, err: err}) })
	}()

	if k.PlayDate == "" {
		return
	}

	go func() {
		rec, err := LoadRecord(context.Background(), c.cfg.Store, k)
		c.post(func() { c.restored(restoreResult{key: k, rec: rec, err: err}) })
	}()
}

// fetched applies a fetch result, guarded by the key active when it lands
// rather than the key it was dispatched for.
func (c *Controller) fetched(res fetchResult) {
	if res.key != c.active {
		c.cfg.Logger.Debug("discarding fetch for inactive round", "key", res.key.String(), "active", c.active.String())
		return
	}
	if c.status == StatusReady {
		return
	}

	if res.err == nil && res.round == nil {
		res.err = ErrRoundNotFound
	}
	if res.err == nil {
		got := res.round.Key()
		if got.Sport != res.key.Sport || (res.key.PlayDate != "" && got.PlayDate != res.key.PlayDate) {
			res.err = fmt.Errorf("backend returned round %s", got)
		}
	}

	if res.err != nil {
		c.status = StatusError
		c.fetchErr = &DataFetchError{Key: res.key, Err: res.err}
		c.cfg.Logger.Warn("round fetch failed", "error", c.fetchErr)
		c.notify()
		return
	}

	s := NewSession(res.round, Deps{
		Store:            c.cfg.Store,
		Submitter:        c.submitter,
		Scheduler:        c,
		Policy:           c.cfg.Policy,
		PhotoReturnDelay: c.cfg.PhotoReturnDelay,
		Logger:           c.cfg.Logger,
		Metrics:          c.cfg.Metrics,
	})
	s.deps.OnChange = func() {
		if c.session == s {
			c.notify()
		}
	}

	if res.key.PlayDate == "" {
		// Saved progress is keyed by the concrete date, which only the fetch
		// knows, so restore here instead of racing.
		c.active = res.round.Key()
		s.Restore(context.Background())
	} else if c.pendingRestore != nil {
		s.ApplyRecord(context.Background(), c.pendingRestore)
		c.pendingRestore = nil
	}

	c.session = s
	c.status = StatusReady
	s.SubmitPending()
	c.notify()
}

// restored applies saved progress if it is for the active round and the
// session has not moved on without it.
func (c *Controller) restored(res restoreResult) {
	if res.key != c.active {
		return
	}
	if res.err != nil {
		c.cfg.Logger.Warn("session restore failed", "key", res.key.String(), "error", res.err)
		return
	}
	if res.rec == nil {
		return
	}

	switch {
	case c.session == nil:
		if c.status == StatusLoading {
			c.pendingRestore = res.rec
		}
	case c.session.Advanced():
		c.cfg.Logger.Info("ignoring saved progress for advanced session", "key", res.key.String())
	default:
		if c.session.ApplyRecord(context.Background(), res.rec) {
			c.session.SubmitPending()
			c.notify()
		}
	}
}

func (c *Controller) stopCopied() {
	if c.cancelCopied != nil {
		c.cancelCopied()
		c.cancelCopied = nil
	}
	c.copied = false
}

func (c *Controller) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(c.snapshot())
	}
}

func (c *Controller) snapshot() State {
	st := State{
		Key:    c.active,
		Status: c.status,
		Copied: c.copied,
	}

	if c.fetchErr != nil {
		st.Error = c.fetchErr.Error()
	}

	s := c.session
	if s == nil {
		return st
	}

	p := s.Progress()
	facts := s.Round().Player

	st.Progress = &p
	st.View = s.View()
	st.Message = s.Message()
	states := p.TileStates()
	st.Tiles = make([]TileView, len(states))
	for i, ts := range states {
		tv := TileView{Name: ts.Name, Flipped: ts.Flipped}
		if ts.Flipped {
			tv.Fact = facts.Fact(ts.Name)
		}
		st.Tiles[i] = tv
	}

	if p.Completed() {
		stats := s.Round().Stats
		st.Answer = facts.Name
		st.Stats = &stats
		st.Share = s.ShareText()
	}

	return st
}
