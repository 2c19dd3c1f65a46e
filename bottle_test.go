/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/kodzoevIssa/bottle/clock"
	"github.com/kodzoevIssa/bottle/games/bottle"
)

// wireMessage covers every field the server sends, whatever the type.
type wireMessage struct {
	Type     string       `json:"type"`
	GameID   string       `json:"game_id"`
	ViewerID string       `json:"viewer_id"`
	Players  int          `json:"players"`
	Assets   string       `json:"assets"`
	Version  uint64       `json:"version"`
	Scene    bottle.Scene `json:"scene"`
	Sound    string       `json:"sound"`
	Src      string       `json:"src"`
}

type TableTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	clock  *clock.Fake
	gm     *GameManager
	server *httptest.Server
}

func (s *TableTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cfg = &Config{
		players: defaultPlayers[:4],
		prefix:  "/party",
		seed:    7,
	}
	s.clock = clock.NewFake(time.Date(2026, 4, 19, 12, 0, 0, 0, time.UTC))

	mux := httprouter.New()
	s.gm = registerBottleGame(s.ctx, s.cfg, "/bottle", mux, s.clock)
	s.server = httptest.NewServer(mux)
}

func (s *TableTestSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
}

func (s *TableTestSuite) dial(gameID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/party/bottle/" + gameID + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	return conn
}

func (s *TableTestSuite) read(conn *websocket.Conn) wireMessage {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	var msg wireMessage
	s.Require().NoError(conn.ReadJSON(&msg))

	return msg
}

// readUntil skips messages until one matches.
func (s *TableTestSuite) readUntil(conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	for i := 0; i < 32; i++ {
		msg := s.read(conn)
		if match(msg) {
			return msg
		}
	}

	s.FailNow("expected message never arrived")
	return wireMessage{}
}

func (s *TableTestSuite) send(conn *websocket.Conn, msg ClientMessage) {
	s.Require().NoError(conn.WriteJSON(msg))
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}

func (s *TableTestSuite) TestConnect_SendsSessionInfoThenScene() {
	conn := s.dial("abcd1234")

	info := s.read(conn)
	s.Equal("session_info", info.Type)
	s.Equal("abcd1234", info.GameID)
	s.Equal(4, info.Players)
	s.Equal("/party/assets/", info.Assets)
	s.NotEmpty(info.ViewerID)

	scene := s.read(conn)
	s.Equal("scene", scene.Type)
	s.Equal(uint64(0), scene.Version)
	s.Len(scene.Scene.Seats, 4)
	s.Equal("calc(41% + 300px)", scene.Scene.Seats[0].Left)
	s.False(scene.Scene.Controls.StartDisabled)
	s.Equal("Pause", scene.Scene.Controls.PauseLabel)
}

func (s *TableTestSuite) TestViewport_RerendersForThatViewer() {
	conn := s.dial("viewport")
	s.read(conn)
	s.read(conn)

	s.send(conn, ClientMessage{Type: "viewport", Width: 400})

	scene := s.read(conn)
	s.Equal("scene", scene.Type)
	s.Equal("calc(41% + 100px)", scene.Scene.Seats[0].Left)
	s.Equal("calc(40% + 100px)", scene.Scene.Seats[1].Top)
}

func (s *TableTestSuite) TestFullTurn_OverWebsocket() {
	conn := s.dial("fullturn")
	s.read(conn)
	s.read(conn)

	s.send(conn, ClientMessage{Type: "start"})

	started := s.read(conn)
	s.Equal("scene", started.Type)
	s.True(started.Scene.Countdown.Visible)
	s.Equal(3, started.Scene.Countdown.Value)
	s.True(started.Scene.Controls.StartDisabled)

	s.clock.Advance(3100 * time.Millisecond)

	spin := s.readUntil(conn, func(m wireMessage) bool { return m.Type == "sound" })
	s.Equal("spin", spin.Sound)
	s.Equal("/party/assets/sounds/spin.wav", spin.Src)

	s.clock.Advance(4 * time.Second)

	flying := s.readUntil(conn, func(m wireMessage) bool {
		return m.Type == "scene" && strings.Contains(m.Scene.Seats[0].Class, "move-center")
	})
	s.Equal("38%", flying.Scene.Seats[0].Left)

	s.clock.Advance(2 * time.Second)

	kiss := s.readUntil(conn, func(m wireMessage) bool { return m.Type == "sound" })
	s.Equal("kiss", kiss.Sound)

	hub, err := s.gm.getHub("fullturn")
	s.Require().NoError(err)
	s.Equal(1, hub.game.Snapshot().KissCount)
}

func (s *TableTestSuite) TestPause_TogglesLabelForEveryViewer() {
	first := s.dial("shared")
	s.read(first)
	s.read(first)

	second := s.dial("shared")
	s.read(second)
	s.read(second)

	s.send(first, ClientMessage{Type: "pause"})

	for _, conn := range []*websocket.Conn{first, second} {
		scene := s.readUntil(conn, func(m wireMessage) bool { return m.Type == "scene" })
		s.Equal("Resume", scene.Scene.Controls.PauseLabel)
	}
}

func (s *TableTestSuite) TestSecondStart_Ignored() {
	conn := s.dial("twice")
	s.read(conn)
	s.read(conn)

	s.send(conn, ClientMessage{Type: "start"})
	first := s.read(conn)

	s.send(conn, ClientMessage{Type: "start"})
	s.send(conn, ClientMessage{Type: "pause"})

	paused := s.read(conn)
	s.Equal(first.Version+1, paused.Version)
	s.Equal("Resume", paused.Scene.Controls.PauseLabel)
	s.Equal(3, paused.Scene.Countdown.Value)
}

func (s *TableTestSuite) TestTablePage_Served() {
	resp, err := http.Get(s.server.URL + "/party/bottle/room42")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func (s *TableTestSuite) TestNewTable_Redirects() {
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	resp, err := client.Get(s.server.URL + "/party/bottle")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusTemporaryRedirect, resp.StatusCode)
	s.Regexp(regexp.MustCompile(`^/party/bottle/[A-Za-z0-9]{8}$`), resp.Header.Get("Location"))
}

func TestHub_PlayWithoutViewers(t *testing.T) {
	cfg := &Config{players: defaultPlayers[:2]}

	hub, err := newHub(cfg, "empty", clock.NewFake(time.Now()))
	require.NoError(t, err)

	assert.ErrorIs(t, hub.Play(bottle.SoundSpin), ErrNoAudience)
}

func TestHub_RejectsTooFewPlayers(t *testing.T) {
	cfg := &Config{players: defaultPlayers[:1]}

	_, err := newHub(cfg, "lonely", clock.NewFake(time.Now()))
	assert.ErrorIs(t, err, bottle.ErrNotEnoughPlayers)
}

func TestHub_DropsStaleSnapshots(t *testing.T) {
	cfg := &Config{players: defaultPlayers[:2]}

	hub, err := newHub(cfg, "stale", clock.NewFake(time.Now()))
	require.NoError(t, err)

	c := &Client{send: make(chan any, 4)}
	hub.clients[c] = true

	players := []string{"a.svg", "b.svg"}
	hub.onChange(bottle.Snapshot{Players: players, Version: 2})
	hub.onChange(bottle.Snapshot{Players: players, Version: 1})
	hub.onChange(bottle.Snapshot{Players: players, Version: 2})

	require.Len(t, c.send, 1)
	msg := (<-c.send).(SceneMessage)
	assert.Equal(t, uint64(2), msg.Version)
}

func TestHub_DropsSlowViewer(t *testing.T) {
	cfg := &Config{players: defaultPlayers[:2]}

	hub, err := newHub(cfg, "slow", clock.NewFake(time.Now()))
	require.NoError(t, err)

	c := &Client{send: make(chan any)}
	hub.clients[c] = true

	require.NoError(t, hub.Play(bottle.SoundKiss))
	assert.Empty(t, hub.clients)

	_, open := <-c.send
	assert.False(t, open)
}

func TestGameManager_Reap(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 4, 19, 12, 0, 0, 0, time.UTC))
	cfg := &Config{players: defaultPlayers[:3]}

	gm := newGameManager(context.Background(), cfg, fake)
	gm.idleTimeout = 10 * time.Minute

	idle, err := gm.getHub("idle")
	require.NoError(t, err)

	fake.Advance(6 * time.Minute)

	_, err = gm.getHub("fresh")
	require.NoError(t, err)

	fake.Advance(6 * time.Minute)

	assert.Equal(t, 1, gm.reap(fake.Now()))

	gm.mu.Lock()
	_, idleKept := gm.hubs["idle"]
	_, freshKept := gm.hubs["fresh"]
	gm.mu.Unlock()

	assert.False(t, idleKept)
	assert.True(t, freshKept)

	assert.Eventually(t, func() bool {
		select {
		case <-idle.done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestGameManager_KeepsWatchedRunningTable(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 4, 19, 12, 0, 0, 0, time.UTC))
	cfg := &Config{players: defaultPlayers[:4], seed: 3}

	gm := newGameManager(context.Background(), cfg, fake)
	gm.idleTimeout = 10 * time.Minute

	hub, err := gm.getHub("watched")
	require.NoError(t, err)

	viewer := &Client{send: make(chan any, 4096)}
	hub.mu.Lock()
	hub.clients[viewer] = true
	hub.mu.Unlock()

	hub.game.Start()

	for i := 0; i < 720; i++ {
		fake.Advance(time.Second)
	}

	snap := hub.game.Snapshot()
	require.Greater(t, snap.KissCount, 50)

	assert.Zero(t, gm.reap(fake.Now()))

	gm.mu.Lock()
	_, kept := gm.hubs["watched"]
	gm.mu.Unlock()
	assert.True(t, kept)
}

func TestGameManager_ReapsUnwatchedRunningTable(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 4, 19, 12, 0, 0, 0, time.UTC))
	cfg := &Config{players: defaultPlayers[:4], seed: 3}

	gm := newGameManager(context.Background(), cfg, fake)
	gm.idleTimeout = 10 * time.Minute

	hub, err := gm.getHub("abandoned")
	require.NoError(t, err)

	hub.game.Start()

	for i := 0; i < 720; i++ {
		fake.Advance(time.Second)
	}

	require.Positive(t, hub.game.Snapshot().KissCount)
	assert.Equal(t, 1, gm.reap(fake.Now()))
}

func TestGameManager_NewGameID(t *testing.T) {
	gm := newGameManager(context.Background(), &Config{players: defaultPlayers}, clock.Real{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := gm.newGameID()
		assert.Regexp(t, `^[A-Za-z0-9]{8}$`, id)
		seen[id] = true
	}

	assert.Len(t, seen, 50)
}
