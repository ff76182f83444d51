package memory

import (
	"context"
	"sync"
	"time"
)

// NonceStore implements ports.NonceStore in process memory. Used nonces are
// kept until their ttl passes and swept lazily on later checks.
type NonceStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	now    func() time.Time
	sweeps int
}

// NewNonceStore returns an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{seen: make(map[string]time.Time), now: time.Now}
}

// CheckAndSet records nonce under scope. It returns false when the nonce
// was already recorded and has not expired.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := scope + ":" + nonce
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweeps++
	if s.sweeps%256 == 0 {
		for k, exp := range s.seen {
			if !now.Before(exp) {
				delete(s.seen, k)
			}
		}
	}

	if exp, ok := s.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}
