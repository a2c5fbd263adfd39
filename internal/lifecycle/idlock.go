package lifecycle

import (
	"hash/fnv"
	"sync"
)

// idStripes serializes mutating operations at per-canary granularity, the
// generalization of the teacher's single sync.RWMutex-guarded job map
// (scheduler.go) to one lock per id instead of one lock for the whole
// table. A fixed stripe count keeps memory bounded regardless of how many
// canaries exist.
type idStripes struct {
	locks [256]sync.Mutex
}

func (s *idStripes) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &s.locks[h.Sum32()%uint32(len(s.locks))]
	m.Lock()
	return m.Unlock
}
