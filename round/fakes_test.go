/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/mysteryathlete/store"
)

var errBoom = errors.New("boom")

func testRound(sport, date, name string) *Round {
	return &Round{
		ID:       "round-" + sport + "-" + date,
		Sport:    sport,
		PlayDate: date,
		Player: PlayerFacts{
			Name:        name,
			Bio:         "Born somewhere.",
			CareerStats: "Lots of points.",
			Photo:       "https://example.com/photo.jpg",
		},
		Stats: RoundStats{TotalPlays: 10, HighestScore: 97},
	}
}

// logBuffer is a goroutine-safe slog sink tests can search.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) Contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Contains(l.buf.String(), s)
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// manualScheduler queues tasks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

func (m *manualScheduler) Schedule(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTask{d: d, fn: fn}
	m.tasks = append(m.tasks, t)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// RunAll fires every task, cancelled ones included, to prove the generation
// guards hold even when a cancel loses the race.
func (m *manualScheduler) RunAll() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	for _, t := range tasks {
		t.fn()
	}
}

// fakeTransport records submissions.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []Result
	keys    []Key
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeTransport) SubmitResult(ctx context.Context, k Key, res Result) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, res)
	f.keys = append(f.keys, k)
	return f.err
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeFetcher serves fixed rounds, optionally holding a key until released.
type fakeFetcher struct {
	mu     sync.Mutex
	rounds map[Key]*Round
	today  map[string]string
	gates  map[Key]chan struct{}
	fails  map[Key]int
	calls  int
}

func newFakeFetcher(rounds ...*Round) *fakeFetcher {
	f := &fakeFetcher{
		rounds: make(map[Key]*Round),
		today:  make(map[string]string),
		gates:  make(map[Key]chan struct{}),
		fails:  make(map[Key]int),
	}
	for _, r := range rounds {
		f.rounds[r.Key()] = r
	}
	return f
}

func (f *fakeFetcher) Hold(k Key) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gates[k] = gate
	return gate
}

func (f *fakeFetcher) FailNext(k Key, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[k] = n
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) FetchRound(ctx context.Context, sport, playDate string) (*Round, error) {
	k := Key{Sport: sport, PlayDate: playDate}

	f.mu.Lock()
	f.calls++
	gate := f.gates[k]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fails[k] > 0 {
		f.fails[k]--
		return nil, errBoom
	}

	if k.PlayDate == "" {
		k.PlayDate = f.today[sport]
	}

	r, ok := f.rounds[k]
	if !ok {
		return nil, ErrRoundNotFound
	}

	cp := *r
	return &cp, nil
}

// gatedStore reads the value first and then waits, so a test can change the
// store underneath a restore that is already in flight.
type gatedStore struct {
	Store
	gate chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := g.Store.Get(ctx, key)
	if strings.HasPrefix(key, sessionPrefix) && g.gate != nil {
		<-g.gate
	}
	return v, ok, err
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errBoom }
func (failingStore) Set(context.Context, string, string) error { return errBoom }
func (failingStore) Remove(context.Context, string) error { return errBoom }
func (failingStore) Keys(context.Context, string) ([]string, error) { return nil, errBoom }

func newMemoryStore() Store {
	return store.NewMemory()
}
