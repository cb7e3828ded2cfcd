/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Each browser (identified by cookie) gets one Player: a round.Controller
// event loop plus every websocket the browser has open. All of a player's
// tabs see the same state.
//
// Routes:
//   - $prefix/play/ws       → websocket for this player's cookie
//   - $prefix/play/share/qr → PNG QR code of the current share text

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/Seednode/mysteryathlete/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "select", "guess", "flip", "give_up", "share", "retry", "leave"
	Sport string `json:"sport,omitempty"` // select
	Date  string `json:"date,omitempty"`  // select; empty for today
	Guess string `json:"guess,omitempty"` // guess
	Tile  string `json:"tile,omitempty"`  // flip; name or board index
}

// StateMessage carries a full snapshot after every change.
type StateMessage struct {
	Type  string      `json:"type"` // "state"
	State round.State `json:"state"`
}

// ClipboardMessage asks the browser to copy Text.
type ClipboardMessage struct {
	Type string `json:"type"` // "clipboard"
	Text string `json:"text"`
}

// SimpleMessage is for generic notifications ("error", "rate_limited").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var errNoClients = errors.New("no connected clients")

type Client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
}

// Player owns one cookie's event loop and connections.
type Player struct {
	id         string
	controller *round.Controller
	cancel     context.CancelFunc

	mu         sync.Mutex
	clients    map[*Client]bool
	last       round.State
	lastActive time.Time
	closed     bool
}

// enqueueLocked hands msg to c without blocking. A client too slow to keep
// up is disconnected and will get a fresh snapshot when it reconnects.
func (p *Player) enqueueLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(p.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
}

func (p *Player) broadcast(msg any) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := msg.(StateMessage); ok {
		p.last = st.State
	}

	n := 0
	for c := range p.clients {
		p.enqueueLocked(c, msg)
		n++
	}

	return n
}

func (p *Player) register(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.clients[c] = true
	p.lastActive = time.Now()
	p.enqueueLocked(c, StateMessage{Type: "state", State: p.last})

	return true
}

func (p *Player) unregister(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.clients[c]; ok {
		delete(p.clients, c)
		close(c.send)
	}
	p.lastActive = time.Now()
}

func (p *Player) touch() {
	p.mu.Lock()
	p.lastActive = time.Now()
	p.mu.Unlock()
}

// idleSince reports whether p has had no connections since cutoff.
func (p *Player) idleSince(cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.clients) == 0 && p.lastActive.Before(cutoff)
}

// closeAll disconnects all clients of this player.
func (p *Player) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for c := range p.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(p.clients, c)
	}
}

// PlayerManager holds every live player, keyed by cookie.
type PlayerManager struct {
	cfg     *Config
	backend *backend
	store   store.Store
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	players map[string]*Player
	wg      sync.WaitGroup
}

func newPlayerManager(cfg *Config, b *backend, shared store.Store, logger *slog.Logger, metrics *Metrics) *PlayerManager {
	return &PlayerManager{
		cfg:     cfg,
		backend: b,
		store:   shared,
		logger:  logger,
		metrics: metrics,
		players: make(map[string]*Player),
	}
}

func playerStorePrefix(id string) string {
	return "player:" + id + ":"
}

// getPlayer returns the player for id, starting its event loop if needed.
func (pm *PlayerManager) getPlayer(id string) *Player {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if p, ok := pm.players[id]; ok {
		return p
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Player{
		id:         id,
		cancel:     cancel,
		clients:    make(map[*Client]bool),
		last:       round.State{Status: round.StatusIdle},
		lastActive: time.Now(),
	}

	p.controller = round.NewController(round.ControllerConfig{
		Fetcher:           pm.backend.fetcher,
		Transport:         pm.backend.transport,
		Store:             store.NewPrefixed(pm.store, playerStorePrefix(id)),
		Logger:            pm.logger.With("player", id),
		Metrics:           pm.metrics,
		Policy:            pm.cfg.policy,
		PhotoReturnDelay:  pm.cfg.photoReturnDelay,
		CopiedBannerDelay: pm.cfg.copiedBannerDelay,
		SubmitTimeout:     pm.cfg.submitTimeout,
		Sink: round.SinkFunc(func(text string) error {
			if p.broadcast(ClipboardMessage{Type: "clipboard", Text: text}) == 0 {
				return errNoClients
			}
			return nil
		}),
		OnChange: func(st round.State) {
			p.broadcast(StateMessage{Type: "state", State: st})
		},
	})

	pm.players[id] = p
	pm.metrics.players.Inc()

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()
		p.controller.Run(ctx)
	}()

	logf(pm.cfg, "PLAYS: Started player %s", id)

	return p
}

func (pm *PlayerManager) lookup(id string) (*Player, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.players[id]
	return p, ok
}

// reap forgets players idle since cutoff. Forgetting a player is the
// leaving-the-site signal, so their saved sessions are cleared first.
func (pm *PlayerManager) reap(cutoff time.Time) int {
	var idle []*Player

	pm.mu.Lock()
	for id, p := range pm.players {
		if p.idleSince(cutoff) {
			delete(pm.players, id)
			idle = append(idle, p)
		}
	}
	pm.mu.Unlock()

	for _, p := range idle {
		pm.metrics.players.Dec()
		p.closeAll()
		p.controller.Leave()
		p.controller.State()
		p.cancel()
		logf(pm.cfg, "PLAYS: Reaped idle player %s", p.id)
	}

	return len(idle)
}

// reaperLoop periodically removes players that have been idle longer than
// the player timeout.
func (pm *PlayerManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(pm.cfg.playerTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.reap(time.Now().Add(-pm.cfg.playerTimeout))
		}
	}
}

// Close stops every event loop and waits for pending submissions. Saved
// sessions are kept.
func (pm *PlayerManager) Close() {
	pm.mu.Lock()
	players := make([]*Player, 0, len(pm.players))
	for id, p := range pm.players {
		players = append(players, p)
		delete(pm.players, id)
	}
	pm.mu.Unlock()

	for _, p := range players {
		p.closeAll()
		p.cancel()
	}
	pm.wg.Wait()

	for _, p := range players {
		p.controller.Wait()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const playerCookieName = "mysteryathlete_id"

func playerIDFromCookie(r *http.Request) string {
	c, err := r.Cookie(playerCookieName)
	if err != nil {
		return ""
	}

	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}

	return id.String()
}

func getOrSetPlayerID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if id := playerIDFromCookie(r); id != "" {
		return id
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
	})

	return id
}

func serveWSForManager(cfg *Config, pm *PlayerManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		playerID := getOrSetPlayerID(cfg, w, r)

		p := pm.getPlayer(playerID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 16),
			limiter: rate.NewLimiter(rate.Limit(cfg.guessRate), cfg.guessBurst),
		}

		pm.metrics.connections.Inc()
		defer pm.metrics.connections.Dec()

		if !p.register(client) {
			_ = conn.Close()
			return
		}

		logf(cfg, "PLAYS: Player %s connected from %s", playerID, realIP(r))

		go client.writePump()
		client.readPump(cfg, p)
	}
}

func (c *Client) readPump(cfg *Config, p *Player) {
	defer func() {
		p.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		p.touch()
		c.handle(cfg, p, msg)
	}
}

func (c *Client) reply(p *Player, msg any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clients[c] {
		p.enqueueLocked(c, msg)
	}
}

func (c *Client) handle(cfg *Config, p *Player, msg ClientMessage) {
	ctl := p.controller

	switch msg.Type {
	case "guess", "flip":
		if !c.limiter.Allow() {
			c.reply(p, SimpleMessage{Type: "rate_limited", Message: "Slow down a little."})
			return
		}
	}

	switch msg.Type {
	case "select":
		date, err := resolveDate(msg.Date, time.Now())
		if err != nil {
			c.reply(p, SimpleMessage{Type: "error", Message: err.Error()})
			return
		}
		ctl.Select(strings.ToLower(strings.TrimSpace(msg.Sport)), date)
	case "guess":
		ctl.Guess(msg.Guess)
	case "flip":
		tile, ok := round.ParseTile(msg.Tile)
		if !ok {
			c.reply(p, SimpleMessage{Type: "error", Message: "unknown tile " + msg.Tile})
			return
		}
		ctl.Click(tile)
	case "give_up":
		ctl.GiveUp()
	case "share":
		ctl.Share()
	case "retry":
		ctl.Retry()
	case "leave":
		ctl.Leave()
		logf(cfg, "PLAYS: Player %s left", p.id)
	default:
		// ignore unknown types
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveShareQR renders the current share text as a PNG QR code.
func serveShareQR(cfg *Config, pm *PlayerManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		p, ok := pm.lookup(playerIDFromCookie(r))
		if !ok {
			http.Error(w, "no active round", http.StatusNotFound)
			return
		}

		share := p.controller.State().Share
		if share == "" {
			http.Error(w, "round not finished", http.StatusNotFound)
			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(share, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Share QR (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// registerPlay sets up the websocket and share routes.
func registerPlay(cfg *Config, pm *PlayerManager, errs chan<- error, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/play/ws", serveWSForManager(cfg, pm))
	mux.GET(cfg.prefix+"/play/share/qr", serveShareQR(cfg, pm, errs))
}
