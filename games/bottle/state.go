/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bottle

// Stage is the position of the table inside one turn.
type Stage int

const (
	StageIdle Stage = iota
	StageCountdown
	StageSpinning
	StageFlying
	StageKissing
	StageResolving
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCountdown:
		return "countdown"
	case StageSpinning:
		return "spinning"
	case StageFlying:
		return "flying"
	case StageKissing:
		return "kissing"
	case StageResolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// next is the stage a fired stage timer moves the table into.
func (s Stage) next() Stage {
	switch s {
	case StageSpinning:
		return StageFlying
	case StageFlying:
		return StageKissing
	case StageKissing:
		return StageResolving
	default:
		return StageIdle
	}
}

// Sound names a fire-and-forget sound effect.
type Sound string

const (
	SoundSpin Sound = "spin"
	SoundKiss Sound = "kiss"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_sounds.go github.com/kodzoevIssa/bottle/games/bottle Sounds

// Sounds plays sound effects. Play must not block on playback.
type Sounds interface {
	Play(sound Sound) error
}

// Snapshot is a copy of the table state at one point in time.
type Snapshot struct {
	Players        []string
	ActivePlayer   int
	PreviousPlayer *int
	SelectedPlayer *int
	Timer          int
	Rotation       float64
	Spinning       bool
	Started        bool
	Paused         bool
	Running        bool
	Flying         bool
	ShowKiss       bool
	KissCount      int
	Stage          Stage
	Version        uint64
}
