package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

const (
	DefaultCacheSize = 10_000
	DefaultCacheTTL  = 24 * time.Hour
)

// CacheOption customizes Cache.
type CacheOption func(*Cache)

// WithSnapshotStore makes the cache write through to store and fall back to
// it on a miss.
func WithSnapshotStore(store Store) CacheOption {
	return func(c *Cache) {
		c.store = store
	}
}

func WithEvictCallback(fn func(key string, st *AgentState)) CacheOption {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Cache holds AgentState in a bounded LRU whose entries also expire after ttl
// without interaction. Work on one key is serialized through Lock.
type Cache struct {
	lru     *expirable.LRU[string, *AgentState]
	store   Store
	onEvict func(key string, st *AgentState)

	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewCache builds a cache with at most size entries. size <= 0 means
// unbounded and ttl <= 0 disables idle expiry.
func NewCache(size int, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		locks: make(map[string]*keyLock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.lru = expirable.NewLRU[string, *AgentState](size, func(key string, st *AgentState) {
		logx.Debug().Str("key", key).Msg("agent state evicted")
		if c.onEvict != nil {
			c.onEvict(key, st)
		}
	}, ttl)
	return c
}

// Lock acquires the per-key mutex and returns its release func.
func (c *Cache) Lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// Load returns a copy of the state for the conversation, consulting the
// snapshot store on a miss. created is true when a fresh state was built.
// Callers must hold the key lock.
func (c *Cache) Load(ctx context.Context, customerID, conversationID string, now time.Time) (st *AgentState, created bool, err error) {
	key, err := Key(customerID, conversationID)
	if err != nil {
		return nil, false, err
	}

	if cached, ok := c.lru.Get(key); ok {
		return cached.Clone(), false, nil
	}

	if c.store != nil {
		loaded, err := c.store.Load(ctx, key)
		switch {
		case err == nil:
			c.lru.Add(key, loaded.Clone())
			return loaded, false, nil
		case errors.Is(err, ErrStateNotFound):
		default:
			logx.Warn().Err(err).Str("key", key).Msg("agent state snapshot load failed")
		}
	}

	return NewAgentState(customerID, conversationID, now), true, nil
}

// Save stores a copy of st. Snapshot failures are logged, never returned.
func (c *Cache) Save(ctx context.Context, st *AgentState) error {
	if err := st.Validate(); err != nil {
		return err
	}
	c.lru.Add(st.Key(), st.Clone())

	if c.store != nil {
		if err := c.store.Save(ctx, st); err != nil {
			logx.Warn().Err(err).Str("key", st.Key()).Msg("agent state snapshot save failed")
		}
	}
	return nil
}

func (c *Cache) Peek(key string) (*AgentState, bool) {
	st, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

func (c *Cache) Remove(key string) {
	c.lru.Remove(key)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
