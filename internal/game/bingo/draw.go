package bingo

import (
	"errors"
	"math/rand"
)

// ErrExhausted is returned once every number has been drawn.
var ErrExhausted = errors.New("all numbers have been drawn")

// Rand is the source used for draws. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// DefaultRand draws from the process-wide generator, which is safe for
// concurrent use.
var DefaultRand Rand = globalRand{}

// Draw picks a uniformly random number in [MinNumber, MaxNumber] that is not
// in drawn, by rejection sampling.
func Draw(drawn []int, r Rand) (int, error) {
	if Remaining(drawn) <= 0 {
		return 0, ErrExhausted
	}

	used := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		used[n] = struct{}{}
	}

	for {
		n := r.Intn(MaxNumber-MinNumber+1) + MinNumber
		if _, ok := used[n]; !ok {
			return n, nil
		}
	}
}

// Remaining returns how many numbers are still undrawn.
func Remaining(drawn []int) int {
	return MaxNumber - MinNumber + 1 - len(drawn)
}
