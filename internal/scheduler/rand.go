package scheduler

import (
	"math/rand"
	"time"
)

func newRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
