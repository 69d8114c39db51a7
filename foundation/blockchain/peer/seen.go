package peer

import "sync"

// SeenSet remembers recently observed gossip identities (transaction and
// block hashes) so rebroadcasts don't loop forever between peers. The
// set is bounded; the oldest entries fall out first.
type SeenSet struct {
	mu    sync.Mutex
	max   int
	set   map[string]struct{}
	order []string
}

// NewSeenSet constructs a SeenSet holding up to max identities.
func NewSeenSet(max int) *SeenSet {
	if max <= 0 {
		max = 1000
	}

	return &SeenSet{
		max: max,
		set: make(map[string]struct{}, max),
	}
}

// Observe records the identity and reports true the first time it is
// seen. A false return means the gossip was already processed and must
// not be forwarded again.
func (ss *SeenSet) Observe(hash string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, exists := ss.set[hash]; exists {
		return false
	}

	if len(ss.order) >= ss.max {
		oldest := ss.order[0]
		ss.order = ss.order[1:]
		delete(ss.set, oldest)
	}

	ss.set[hash] = struct{}{}
	ss.order = append(ss.order, hash)

	return true
}
