// SPDX-License-Identifier: MIT

package sign

import "sync"

// keyCache holds the single live signing key. SigV4 keys are valid for one
// UTC calendar day; once the date rolls over the stale entry is replaced
// silently. Key material is pure derived state, so process-local caching is
// safe even with many replicas.
type keyCache struct {
	mu   sync.RWMutex
	date string
	key  []byte

	derivations int // for tests and metrics
}

func newKeyCache() *keyCache {
	return &keyCache{}
}

// get returns the cached key for date, deriving and storing it on miss.
// Two concurrent misses may both derive; both results are identical.
func (c *keyCache) get(date string, derive func() []byte) []byte {
	c.mu.RLock()
	if c.date == date {
		k := c.key
		c.mu.RUnlock()
		return k
	}
	c.mu.RUnlock()

	key := derive()

	c.mu.Lock()
	c.date = date
	c.key = key
	c.derivations++
	c.mu.Unlock()
	return key
}

// Derivations reports how many times the signing key has been derived.
func (s *Signer) Derivations() int {
	s.keys.mu.RLock()
	defer s.keys.mu.RUnlock()
	return s.keys.derivations
}
