package utils

import (
	"github.com/panjf2000/ants/v2"
)

const size = 10000

// Pool is the process-wide goroutine pool.
var Pool *ants.Pool

func init() {
	Pool, _ = ants.NewPool(size, ants.WithNonblocking(true))
}
