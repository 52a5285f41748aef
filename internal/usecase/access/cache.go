package access

import "sync"

// SessionCache memoizes access decisions for one session. Decisions are
// keyed by privilege, record identifier, and file name; a change of record
// identifier drops the whole cache, since most lookups within a session hit
// the record currently viewed.
type SessionCache struct {
	mu        sync.Mutex
	pi        string
	decisions map[decisionKey]bool
}

type decisionKey struct {
	privilege string
	pi        string
	fileName  string
}

// NewSessionCache creates an empty decision cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{decisions: map[decisionKey]bool{}}
}

// Get returns a memoized decision.
func (c *SessionCache) Get(privilege, pi, fileName string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pi != c.pi {
		return false, false
	}
	allowed, ok := c.decisions[decisionKey{privilege, pi, fileName}]
	return allowed, ok
}

// Put stores a decision, invalidating every earlier decision when the record
// identifier changed.
func (c *SessionCache) Put(privilege, pi, fileName string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pi != c.pi {
		c.decisions = map[decisionKey]bool{}
		c.pi = pi
	}
	c.decisions[decisionKey{privilege, pi, fileName}] = allowed
}
