package campaign

import (
	"container/list"
	"crypto/sha256"
	"sync"
)

type digest [sha256.Size]byte

// seenSet remembers the most recent input digests across all lanes so the
// same document is not run twice. The oldest digest is evicted at capacity.
type seenSet struct {
	mu      sync.Mutex
	items   map[digest]*list.Element
	order   *list.List
	maxSize int
}

func newSeenSet(maxSize int) *seenSet {
	return &seenSet{
		items:   make(map[digest]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Add records data and reports whether it was new.
func (s *seenSet) Add(data []byte) bool {
	key := digest(sha256.Sum256(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[key]; ok {
		s.order.MoveToFront(elem)
		return false
	}
	s.items[key] = s.order.PushFront(key)
	if len(s.items) > s.maxSize {
		oldest := s.order.Back()
		delete(s.items, oldest.Value.(digest))
		s.order.Remove(oldest)
	}
	return true
}

func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
