package ledger

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedLock serializes work per account without a lock per account id.
// Two accounts may share a stripe; they then queue behind each other.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(accountID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
