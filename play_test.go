/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/Seednode/mysteryathlete/store"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverMessage struct {
	Type    string      `json:"type"`
	State   round.State `json:"state"`
	Text    string      `json:"text"`
	Message string      `json:"message"`
}

type playHarness struct {
	cfg     *Config
	shared  store.Store
	backend *backend
	metrics *Metrics
	pm      *PlayerManager
	srv     *httptest.Server
}

// newPlayHarness serves the play routes over shared, or over a fresh memory
// store when shared is nil.
func newPlayHarness(t *testing.T, cfg *Config, shared store.Store) *playHarness {
	t.Helper()

	require.NoError(t, cfg.validate())

	if shared == nil {
		shared = store.NewMemory()
	}

	b := newTestBackend(t, shared)
	metrics := newMetrics(prometheus.NewRegistry())
	pm := newPlayerManager(cfg, b, shared, newLogger(cfg, io.Discard), metrics)

	errs := make(chan error, 64)
	mux := httprouter.New()
	registerPlay(cfg, pm, errs, mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		pm.Close()
	})

	return &playHarness{cfg: cfg, shared: shared, backend: b, metrics: metrics, pm: pm, srv: srv}
}

func (h *playHarness) dial(t *testing.T, jar http.CookieJar) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 5 * time.Second}

	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(h.srv.URL, "http")+"/play/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	return conn
}

func newJar(t *testing.T) http.CookieJar {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return jar
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var msg serverMessage
		require.NoError(t, conn.ReadJSON(&msg))

		if match(msg) {
			return msg
		}
	}
}

func stateWith(pred func(round.State) bool) func(serverMessage) bool {
	return func(m serverMessage) bool {
		return m.Type == "state" && pred(m.State)
	}
}

func ofType(typ string) func(serverMessage) bool {
	return func(m serverMessage) bool { return m.Type == typ }
}

func selectReady(t *testing.T, conn *websocket.Conn, sport, date string) round.State {
	t.Helper()

	send(t, conn, ClientMessage{Type: "select", Sport: sport, Date: date})

	return readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Status == round.StatusReady
	})).State
}

func TestPlayFullRound(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)
	jar := newJar(t)
	conn := h.dial(t, jar)

	first := readUntil(t, conn, ofType("state"))
	assert.Equal(t, round.StatusIdle, first.State.Status)

	st := selectReady(t, conn, "NBA", "2026-10-17")
	assert.Equal(t, round.Key{Sport: "nba", PlayDate: "2026-10-17"}, st.Key)
	require.Len(t, st.Tiles, len(round.Tiles))
	assert.Empty(t, st.Tiles[0].Fact)

	send(t, conn, ClientMessage{Type: "flip", Tile: "bio"})
	st = readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Progress != nil && st.Progress.Flipped(round.TileBio)
	})).State
	assert.Less(t, st.Progress.Score, round.InitialScore)
	assert.NotEmpty(t, st.Tiles[0].Fact)
	assert.Empty(t, st.Answer)

	send(t, conn, ClientMessage{Type: "guess", Guess: "shaquille oneal"})
	st = readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Progress != nil && st.Progress.Completed()
	})).State
	assert.Equal(t, round.CompletionWon, st.Progress.CompletionReason)
	assert.Equal(t, "Shaquille O'Neal", st.Answer)
	assert.Contains(t, st.Share, "Mystery Athlete NBA 2026-10-17")

	key := round.Key{Sport: "nba", PlayDate: "2026-10-17"}
	assert.Eventually(t, func() bool {
		stats, err := h.backend.stats.Stats(context.Background(), key)
		return err == nil && stats.TotalPlays == 1
	}, 5*time.Second, 10*time.Millisecond)

	send(t, conn, ClientMessage{Type: "share"})
	clip := readUntil(t, conn, ofType("clipboard"))
	assert.Equal(t, st.Share, clip.Text)
	readUntil(t, conn, stateWith(func(st round.State) bool { return st.Copied }))

	client := &http.Client{Jar: jar}
	resp, err := client.Get(h.srv.URL + "/play/share/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.players))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.completions.WithLabelValues("nba", "won")))
}

func TestPlayTabsShareState(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)
	jar := newJar(t)

	one := h.dial(t, jar)
	readUntil(t, one, ofType("state"))
	selectReady(t, one, "mlb", "2026-10-16")

	two := h.dial(t, jar)
	st := readUntil(t, two, ofType("state")).State
	assert.Equal(t, round.StatusReady, st.Status)
	assert.Equal(t, "2026-10-16", st.Key.PlayDate)

	send(t, two, ClientMessage{Type: "give_up"})
	got := readUntil(t, one, stateWith(func(st round.State) bool { return st.Answer != "" })).State
	assert.Equal(t, "Babe Ruth", got.Answer)
	assert.Equal(t, round.CompletionGaveUp, got.Progress.CompletionReason)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.players))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.connections))
}

func TestPlaySeparatePlayers(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)

	one := h.dial(t, newJar(t))
	readUntil(t, one, ofType("state"))
	selectReady(t, one, "nba", "2026-10-17")

	two := h.dial(t, newJar(t))
	st := readUntil(t, two, ofType("state")).State
	assert.Equal(t, round.StatusIdle, st.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.players))
}

func TestPlayProgressSurvivesReconnect(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)
	jar := newJar(t)

	conn := h.dial(t, jar)
	readUntil(t, conn, ofType("state"))
	selectReady(t, conn, "nba", "2026-10-17")

	send(t, conn, ClientMessage{Type: "flip", Tile: "6"})
	readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Progress != nil && st.Progress.Flipped(round.TileCareerStats)
	}))
	conn.Close()

	// A second instance over the same store stands in for a restart. The
	// jar sends the same cookie since cookies ignore the port.
	restarted := newPlayHarness(t, testConfig(), h.shared)

	conn = restarted.dial(t, jar)
	readUntil(t, conn, ofType("state"))

	send(t, conn, ClientMessage{Type: "select", Sport: "nba", Date: "2026-10-17"})
	st := readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Progress != nil && len(st.Progress.FlippedTiles) > 0
	})).State

	assert.Equal(t, round.StatusReady, st.Status)
	assert.Equal(t, []round.Tile{round.TileCareerStats}, st.Progress.FlippedTiles)
}

func TestPlayRejections(t *testing.T) {
	cfg := testConfig()
	cfg.guessRate = 0.001
	cfg.guessBurst = 1

	h := newPlayHarness(t, cfg, nil)
	conn := h.dial(t, newJar(t))
	readUntil(t, conn, ofType("state"))

	send(t, conn, ClientMessage{Type: "select", Sport: "nba", Date: "2999-01-01"})
	msg := readUntil(t, conn, ofType("error"))
	assert.Contains(t, msg.Message, "play date")

	send(t, conn, ClientMessage{Type: "select", Sport: "nba", Date: "2026-02-30"})
	msg = readUntil(t, conn, ofType("error"))
	assert.Contains(t, msg.Message, "invalid date")

	selectReady(t, conn, "nba", "2026-10-17")

	send(t, conn, ClientMessage{Type: "flip", Tile: "scoreboard"})
	readUntil(t, conn, ofType("error"))

	send(t, conn, ClientMessage{Type: "guess", Guess: "Michael Jordan"})
	readUntil(t, conn, ofType("rate_limited"))
}

func TestPlayUnknownSport(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)
	conn := h.dial(t, newJar(t))
	readUntil(t, conn, ofType("state"))

	send(t, conn, ClientMessage{Type: "select", Sport: "curling"})
	st := readUntil(t, conn, stateWith(func(st round.State) bool {
		return st.Status == round.StatusError
	})).State
	assert.Contains(t, st.Error, "round not found")
}

func TestReapIdlePlayers(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)

	conn := h.dial(t, newJar(t))
	readUntil(t, conn, ofType("state"))
	selectReady(t, conn, "nba", "2026-10-17")

	send(t, conn, ClientMessage{Type: "give_up"})
	readUntil(t, conn, stateWith(func(st round.State) bool { return st.Answer != "" }))

	future := time.Now().Add(time.Hour)

	// Connected players are never reaped.
	assert.Zero(t, h.pm.reap(future))

	conn.Close()
	assert.Eventually(t, func() bool {
		return h.pm.reap(future) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.players))

	// Sessions are cleared, the submission marker stays.
	marker := round.MarkerKey(round.Key{Sport: "nba", PlayDate: "2026-10-17"})
	assert.Eventually(t, func() bool {
		keys, err := h.shared.Keys(context.Background(), "player:")
		return err == nil && len(keys) == 1 && strings.HasSuffix(keys[0], ":"+marker)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShareQRWithoutPlayer(t *testing.T) {
	h := newPlayHarness(t, testConfig(), nil)

	resp, err := http.Get(h.srv.URL + "/play/share/qr")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlayerIDFromCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, playerIDFromCookie(r))

	r.AddCookie(&http.Cookie{Name: playerCookieName, Value: "not-a-uuid"})
	assert.Empty(t, playerIDFromCookie(r))

	cfg := testConfig()
	w := httptest.NewRecorder()
	id := getOrSetPlayerID(cfg, w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, id)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	assert.Equal(t, id, getOrSetPlayerID(cfg, httptest.NewRecorder(), r))
}
