/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Spin the bottle
//
// Every table lives at /bottle/:gameid. The table itself runs on the server:
// the countdown, the spin, the flight of the two avatars and the kiss are all
// driven by server-side timers, and each browser watching the table receives a
// scene laid out for its own viewport width. Browsers only draw the scene and
// play the sounds they are told to play.
//
// Features:
// - One shared table per game ID, any number of screens watching it
// - Start (single use) and pause/resume controls from any screen
// - Scenes rendered per viewer, so narrow screens get a tighter circle
// - Sound playback failures in the browser are reported back and logged
// - Tables nobody watches or plays are reaped after --session-timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current table, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/kodzoevIssa/bottle/clock"
	"github.com/kodzoevIssa/bottle/games/bottle"
)

// Messages coming from clients
type ClientMessage struct {
	Type    string  `json:"type"`              // "start", "pause", "viewport", "audio_error"
	Width   float64 `json:"width,omitempty"`   // viewport
	Sound   string  `json:"sound,omitempty"`   // audio_error
	Message string  `json:"message,omitempty"` // audio_error
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	GameID   string `json:"game_id"`
	ViewerID string `json:"viewer_id"`
	Players  int    `json:"players"`
	Assets   string `json:"assets"` // URL prefix for scene image handles
}

// SceneMessage carries a table layout for one viewer.
type SceneMessage struct {
	Type    string       `json:"type"` // "scene"
	Version uint64       `json:"version"`
	Scene   bottle.Scene `json:"scene"`
}

// SoundMessage asks every viewer to play a sound once.
type SoundMessage struct {
	Type  string `json:"type"` // "sound"
	Sound string `json:"sound"`
	Src   string `json:"src"`
}

type Client struct {
	conn  *websocket.Conn
	send  chan any
	id    string
	width float64
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id    string
	cfg   *Config
	clock clock.Clock
	game  *bottle.Game

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	lastActive  time.Time
	lastVersion uint64
}

func newHub(cfg *Config, gameID string, clk clock.Clock) (*Hub, error) {
	h := &Hub{
		id:         gameID,
		cfg:        cfg,
		clock:      clk,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		done:       make(chan struct{}),
		lastActive: clk.Now(),
	}

	game, err := bottle.New(&bottle.Config{
		Players:  cfg.players,
		Clock:    clk,
		Random:   bottle.NewRandom(cfg.seed),
		Sounds:   h,
		OnChange: h.onChange,
		Logf: func(format string, args ...any) {
			logf(cfg, format+" in %s", append(args, gameID)...)
		},
	})
	if err != nil {
		return nil, err
	}

	h.game = game

	return h, nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = h.clock.Now()
			h.clients[c] = true

			snap := h.game.Snapshot()

			c.send <- SessionInfoMessage{
				Type:     "session_info",
				GameID:   h.id,
				ViewerID: c.id,
				Players:  len(snap.Players),
				Assets:   h.cfg.prefix + "/assets/",
			}
			h.sendSceneLocked(c, snap)

			viewers := len(h.clients)
			h.mu.Unlock()

			logf(h.cfg, "GAMES: Viewer %s joined %s (%d watching)", c.id, h.id, viewers)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = h.clock.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			viewers := len(h.clients)
			h.mu.Unlock()

			logf(h.cfg, "GAMES: Viewer %s left %s (%d watching)", c.id, h.id, viewers)

		case cmd := <-h.commands:
			h.mu.Lock()
			h.lastActive = h.clock.Now()
			h.mu.Unlock()

			h.handleCommand(cmd)
		}
	}
}

// handleCommand runs without h.mu held, since the controller calls back into the hub.
func (h *Hub) handleCommand(cmd command) {
	c := cmd.client
	msg := cmd.msg

	switch msg.Type {
	case "start":
		if h.game.Snapshot().Started {
			logf(h.cfg, "GAMES: Ignored start from %s, %s is already running", c.id, h.id)
			return
		}

		logf(h.cfg, "GAMES: Viewer %s started %s", c.id, h.id)
		h.game.Start()

	case "pause":
		h.game.TogglePause()

		logf(h.cfg, "GAMES: Viewer %s toggled pause in %s (paused: %t)", c.id, h.id, h.game.Snapshot().Paused)

	case "viewport":
		if msg.Width < 0 {
			return
		}

		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			c.width = msg.Width
			h.sendSceneLocked(c, h.game.Snapshot())
		}
		h.mu.Unlock()

	case "audio_error":
		logf(h.cfg, "AUDIO: Viewer %s could not play %q in %s: %s", c.id, msg.Sound, h.id, msg.Message)
	}
}

// onChange pushes a fresh scene to every viewer. Snapshots may arrive out of
// order from concurrent timers; anything older than the last one sent is dropped.
// A watched table that keeps turning counts as active even when nobody touches it.
func (h *Hub) onChange(snap bottle.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) > 0 {
		h.lastActive = h.clock.Now()
	}

	if snap.Version <= h.lastVersion {
		return
	}
	h.lastVersion = snap.Version

	for client := range h.clients {
		h.sendSceneLocked(client, snap)
	}
}

// sendSceneLocked assumes h.mu is already held.
func (h *Hub) sendSceneLocked(c *Client, snap bottle.Snapshot) {
	msg := SceneMessage{
		Type:    "scene",
		Version: snap.Version,
		Scene:   bottle.Render(snap, c.width),
	}

	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
}

// Play broadcasts a sound to every viewer. It fails when nobody is watching.
func (h *Hub) Play(sound bottle.Sound) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return ErrNoAudience
	}

	msg := SoundMessage{
		Type:  "sound",
		Sound: string(sound),
		Src:   h.cfg.prefix + "/assets/sounds/" + string(sound) + ".wav",
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.dropLocked(client)
		}
	}

	return nil
}

// enqueue hands a message to the run loop, unless the hub has been closed.
func (h *Hub) enqueue(cmd command) bool {
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// closeAll stops the table and disconnects all of its viewers (used by reaper).
func (h *Hub) closeAll() {
	h.once.Do(func() {
		close(h.done)
	})

	h.game.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated table.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	cfg         *Config
	clock       clock.Clock
	idleTimeout time.Duration
}

func newGameManager(ctx context.Context, cfg *Config, clk clock.Clock) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		cfg:         cfg,
		clock:       clk,
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	hub, err := newHub(gm.cfg, gameID, gm.clock)
	if err != nil {
		return nil, err
	}

	gm.hubs[gameID] = hub
	go hub.run()

	logf(gm.cfg, "GAMES: Opened table %s", gameID)

	return hub, nil
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < cap(out) {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b <= max && len(out) < cap(out) {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}

		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap closes every hub idle since before now minus idleTimeout.
func (gm *GameManager) reap(now time.Time) int {
	cutoff := now.Add(-gm.idleTimeout)
	reaped := 0

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++

			logf(gm.cfg, "GAMES: Closed idle table %s", id)
		}
	}

	return reaped
}

func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gm.reap(gm.clock.Now())
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub, err := gm.getHub(gameID)
		if err != nil {
			errorf("Unable to open table %s: %v", gameID, err)
			http.Error(w, "unable to open table", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Websocket upgrade for %s failed: %v [%s]", realIP(r), err, middleware.GetReqID(r.Context()))
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 32),
			id:   uuid.NewString(),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start", "pause", "viewport", "audio_error":
			if !h.enqueue(command{client: c, msg: msg}) {
				return
			}
		default:
			// ignore unknown types
		}
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

// QR handler: generates a PNG QR code for the current table URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed templates/table.html
var tableTemplate embed.FS

var tablePage = template.Must(template.ParseFS(tableTemplate, "templates/table.html"))

type tablePageData struct {
	Favicon template.HTML
	GameID  string
	Prefix  string
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		err := tablePage.Execute(w, tablePageData{
			Favicon: template.HTML(getFavicon(cfg)),
			GameID:  ps.ByName("gameid"),
			Prefix:  cfg.prefix,
		})
		if err != nil {
			errorf("Unable to render table page: %v", err)
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created table %s%s/%s", cfg.prefix, path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerBottleGame sets up routes so that:
//   - $path                  → redirects to new random table (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that table
//   - $path/:gameid/qr       → PNG QR code for that table URL
func registerBottleGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, clk clock.Clock) *GameManager {
	gm := newGameManager(ctx, cfg, clk)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
