package session

import (
	"sync"
	"time"

	"media-fetch-tg/internal/types"
)

const defaultTTL = time.Hour

// Pending is the per-user slot between URL submission and quality
// selection. It holds the authoritative URL; the callback token only
// carries a truncated copy.
type Pending struct {
	URL       string
	Platform  types.Platform
	CreatedAt time.Time
}

// Store keeps one pending selection per user. A new URL submission
// overwrites the previous slot (last-submission-wins); slots never leak
// across users.
type Store struct {
	mu  sync.Mutex
	m   map[int64]Pending
	ttl time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Store{m: make(map[int64]Pending), ttl: ttl}
}

func (s *Store) Put(tgUserID int64, url string, platform types.Platform) {
	s.mu.Lock()
	s.m[tgUserID] = Pending{URL: url, Platform: platform, CreatedAt: time.Now()}
	s.mu.Unlock()
}

// Take consumes the user's pending selection. Expired slots count as absent.
func (s *Store) Take(tgUserID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.m[tgUserID]
	if !ok {
		return Pending{}, false
	}
	delete(s.m, tgUserID)
	if time.Since(pending.CreatedAt) > s.ttl {
		return Pending{}, false
	}
	return pending, true
}

// Sweep drops expired slots. Run periodically.
func (s *Store) Sweep() {
	s.mu.Lock()
	for id, pending := range s.m {
		if time.Since(pending.CreatedAt) > s.ttl {
			delete(s.m, id)
		}
	}
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
