/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bottle is the spin-the-bottle table controller and its scene renderer.
//
// A turn runs Idle → Countdown → Spinning → Flying → Kissing → Resolving and
// then immediately starts the next countdown. Every delayed transition is a
// single timer, and every timer re-checks the pause flag when it fires: a stage
// that comes due while the table is paused is dropped, not postponed.
package bottle

import (
	"math"
	"sync"
	"time"

	"github.com/kodzoevIssa/bottle/clock"
)

const (
	CountdownSeconds = 3

	tickInterval = time.Second
	preSpinDelay = 3100 * time.Millisecond
	flightDelay  = 4 * time.Second
	kissDelay    = 2 * time.Second
	resolveDelay = 2 * time.Second

	minFullTurns    = 5
	fullTurnChoices = 5

	// Rotates seat 0 under the bottle's neck.
	seatOffset = -270.0
)

type Config struct {
	// Avatar handles in seating order. Fixed for the life of the table.
	Players []string

	Clock  clock.Clock
	Random Random
	Sounds Sounds

	// OnChange is called with the new state after every mutation, without any lock held.
	OnChange func(Snapshot)

	Logf func(format string, args ...any)
}

type Game struct {
	mu sync.Mutex

	players  []string
	clock    clock.Clock
	random   Random
	sounds   Sounds
	onChange func(Snapshot)
	logf     func(format string, args ...any)

	activePlayer   int
	previousPlayer int // -1 outside a transition
	selectedPlayer int // -1 outside a transition
	target         int
	timer          int
	rotation       float64
	spinning       bool
	started        bool
	paused         bool
	running        bool
	flying         bool
	showKiss       bool
	kissCount      int
	stage          Stage
	version        uint64
	stopped        bool

	tickTimer    clock.Timer
	tickGen      uint64
	preSpinTimer clock.Timer
	preSpinGen   uint64
	stageTimer   clock.Timer
	stageGen     uint64
}

// effects are applied after the lock is released.
type effects struct {
	changed bool
	sounds  []Sound
}

func (fx *effects) merge(other effects) {
	fx.changed = fx.changed || other.changed
	fx.sounds = append(fx.sounds, other.sounds...)
}

func New(cfg *Config) (*Game, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if len(cfg.Players) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	if cfg.Clock == nil {
		return nil, ErrNilClock
	}
	if cfg.Random == nil {
		return nil, ErrNilRandom
	}
	if cfg.Sounds == nil {
		return nil, ErrNilSounds
	}

	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Game{
		players:        append([]string(nil), cfg.Players...),
		clock:          cfg.Clock,
		random:         cfg.Random,
		sounds:         cfg.Sounds,
		onChange:       cfg.OnChange,
		logf:           logf,
		previousPlayer: -1,
		selectedPlayer: -1,
		stage:          StageIdle,
	}, nil
}

// Start begins a countdown to the next spin. It marks the table as started even
// when a turn is already in flight, in which case nothing else happens.
func (g *Game) Start() {
	g.mu.Lock()
	fx := g.startLocked()
	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

// Spin sends the bottle towards a random player other than the active one.
// It does nothing while paused or while a turn is in flight.
func (g *Game) Spin() {
	g.mu.Lock()
	fx := g.spinLocked()
	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

// TogglePause flips the pause flag. Pausing halts the countdown; resuming restarts
// it with a full second to the next decrement. Stage timers already scheduled are
// left alone and will be dropped if they fire while paused.
func (g *Game) TogglePause() {
	g.mu.Lock()

	if g.stopped {
		g.mu.Unlock()
		return
	}

	g.paused = !g.paused
	fx := effects{changed: true}

	if g.paused {
		g.cancelTickLocked()
	} else {
		g.scheduleTickLocked()
		fx.merge(g.maybeSpinLocked())
	}

	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

// Stop cancels every pending timer. The table is inert afterwards.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	g.cancelTickLocked()
	stopTimer(g.preSpinTimer)
	g.preSpinTimer = nil
	g.preSpinGen++
	stopTimer(g.stageTimer)
	g.stageTimer = nil
	g.stageGen++
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.snapshotLocked()
}

func (g *Game) startLocked() effects {
	if g.stopped {
		return effects{}
	}

	fx := effects{}
	if !g.started {
		g.started = true
		fx.changed = true
	}

	if g.running {
		return fx
	}

	g.timer = CountdownSeconds
	g.stage = StageCountdown
	fx.changed = true

	g.scheduleTickLocked()

	stopTimer(g.preSpinTimer)
	g.preSpinGen++
	gen := g.preSpinGen
	g.preSpinTimer = g.clock.AfterFunc(preSpinDelay, func() {
		g.preSpin(gen)
	})

	return fx
}

func (g *Game) spinLocked() effects {
	if g.stopped || g.paused || g.running {
		return effects{}
	}

	g.spinning = true
	g.running = true
	g.target = g.drawTargetLocked()
	g.rotation = g.nextRotationLocked(g.target)
	g.stage = StageSpinning

	g.scheduleStageLocked(flightDelay)

	g.logf("GAMES: Bottle spinning from player %d towards player %d", g.activePlayer, g.target)

	return effects{
		changed: true,
		sounds:  []Sound{SoundSpin},
	}
}

// drawTargetLocked redraws until the index differs from the active player.
func (g *Game) drawTargetLocked() int {
	for {
		i := g.random.Intn(len(g.players))
		if i != g.activePlayer {
			return i
		}
	}
}

// nextRotationLocked keeps the turn count above the previous rotation so the
// bottle always spins forward, and lands the neck on the target seat.
// From rest the first spin is exactly turns*360 + target*360/n - 270.
func (g *Game) nextRotationLocked(target int) float64 {
	anglePerPlayer := 360.0 / float64(len(g.players))
	offset := float64(target)*anglePerPlayer + seatOffset
	turns := minFullTurns + g.random.Intn(fullTurnChoices)
	base := math.Floor(g.rotation / 360)

	return (base+float64(turns))*360 + offset
}

func (g *Game) maybeSpinLocked() effects {
	if g.timer == 0 && g.spinning && !g.paused && !g.running {
		return g.spinLocked()
	}

	return effects{}
}

func (g *Game) scheduleTickLocked() {
	g.cancelTickLocked()

	if g.timer <= 0 || g.paused {
		return
	}

	gen := g.tickGen
	g.tickTimer = g.clock.AfterFunc(tickInterval, func() {
		g.tick(gen)
	})
}

func (g *Game) cancelTickLocked() {
	stopTimer(g.tickTimer)
	g.tickTimer = nil
	g.tickGen++
}

func (g *Game) tick(gen uint64) {
	g.mu.Lock()

	if g.stopped || gen != g.tickGen || g.paused || g.timer == 0 {
		g.mu.Unlock()
		return
	}

	g.tickTimer = nil
	g.timer--
	fx := effects{changed: true}

	g.scheduleTickLocked()
	fx.merge(g.maybeSpinLocked())

	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

func (g *Game) preSpin(gen uint64) {
	g.mu.Lock()

	if g.stopped || gen != g.preSpinGen {
		g.mu.Unlock()
		return
	}

	g.preSpinTimer = nil

	if g.paused {
		g.mu.Unlock()
		g.logf("GAMES: Spin request dropped while paused")
		return
	}

	g.spinning = true
	fx := effects{changed: true}
	fx.merge(g.maybeSpinLocked())

	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

// scheduleStageLocked replaces any pending stage timer.
func (g *Game) scheduleStageLocked(d time.Duration) {
	stopTimer(g.stageTimer)
	g.stageGen++
	gen := g.stageGen
	g.stageTimer = g.clock.AfterFunc(d, func() {
		g.advance(gen)
	})
}

// advance applies the stage that follows the current one.
func (g *Game) advance(gen uint64) {
	g.mu.Lock()

	if g.stopped || gen != g.stageGen {
		g.mu.Unlock()
		return
	}

	g.stageTimer = nil

	if g.paused {
		stage := g.stage
		g.mu.Unlock()
		g.logf("GAMES: Stage after %s dropped while paused", stage)
		return
	}

	var fx effects

	switch g.stage.next() {
	case StageFlying:
		g.previousPlayer = g.activePlayer
		g.selectedPlayer = g.target
		g.flying = true
		g.stage = StageFlying
		fx.changed = true

		g.scheduleStageLocked(kissDelay)

	case StageKissing:
		g.showKiss = true
		g.kissCount++
		g.stage = StageKissing
		fx.changed = true
		fx.sounds = append(fx.sounds, SoundKiss)

		g.scheduleStageLocked(resolveDelay)

	case StageResolving:
		g.activePlayer = g.target
		g.previousPlayer = -1
		g.selectedPlayer = -1
		g.spinning = false
		g.showKiss = false
		g.flying = false
		g.running = false
		g.stage = StageIdle
		fx.changed = true

		fx.merge(g.startLocked())
	}

	snap := g.commitLocked(fx)
	g.mu.Unlock()

	g.apply(snap, fx)
}

func (g *Game) commitLocked(fx effects) Snapshot {
	if fx.changed {
		g.version++
	}

	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	s := Snapshot{
		Players:      append([]string(nil), g.players...),
		ActivePlayer: g.activePlayer,
		Timer:        g.timer,
		Rotation:     g.rotation,
		Spinning:     g.spinning,
		Started:      g.started,
		Paused:       g.paused,
		Running:      g.running,
		Flying:       g.flying,
		ShowKiss:     g.showKiss,
		KissCount:    g.kissCount,
		Stage:        g.stage,
		Version:      g.version,
	}

	if g.previousPlayer >= 0 {
		p := g.previousPlayer
		s.PreviousPlayer = &p
	}
	if g.selectedPlayer >= 0 {
		p := g.selectedPlayer
		s.SelectedPlayer = &p
	}

	return s
}

func (g *Game) apply(snap Snapshot, fx effects) {
	if fx.changed && g.onChange != nil {
		g.onChange(snap)
	}

	for _, sound := range fx.sounds {
		if err := g.sounds.Play(sound); err != nil {
			g.logf("AUDIO: Unable to play %s sound: %v", sound, err)
		}
	}
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
