/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bottle

// GameError is a sentinel error returned by the table controller.
type GameError string

func (e GameError) Error() string {
	return string(e)
}

const (
	ErrNilConfig        GameError = "config cannot be nil"
	ErrNilClock         GameError = "clock cannot be nil"
	ErrNilRandom        GameError = "random source cannot be nil"
	ErrNilSounds        GameError = "sound player cannot be nil"
	ErrNotEnoughPlayers GameError = "at least two players are required"
)
