package tracker

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// cityLocks serialises writers per city over a fixed set of mutexes. A city
// always maps to the same stripe; unrelated cities may share one.
type cityLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (c *cityLocks) lock(city string) (unlock func()) {
	l := &c.stripes[stripe(city)]
	l.Lock()
	return l.Unlock
}

func stripe(city string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(city))
	return h.Sum32() % lockStripes
}
