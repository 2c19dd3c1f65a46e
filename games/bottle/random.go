/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bottle

import (
	"math/rand"
	"time"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_random.go github.com/kodzoevIssa/bottle/games/bottle Random

// Random draws uniformly distributed integers in [0, n).
type Random interface {
	Intn(n int) int
}

type seededRandom struct {
	random *rand.Rand
}

// NewRandom returns a Random seeded with seed, or with the current time when seed is 0.
// The result is not safe for concurrent use; Game only calls it under its own lock.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &seededRandom{
		random: rand.New(rand.NewSource(seed)),
	}
}

func (r *seededRandom) Intn(n int) int {
	return r.random.Intn(n)
}
