package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrStateNotFound = errors.New("agent state not found")
)

const (
	defaultStoreKeyPrefix = "crm:agent:state:"
	defaultStoreTTL       = 7 * 24 * time.Hour
)

// Store persists AgentState snapshots outside the process.
type Store interface {
	Load(ctx context.Context, key string) (*AgentState, error)
	Save(ctx context.Context, st *AgentState) error
	Delete(ctx context.Context, key string) error
}

// RedisClient is the subset of go-redis commands the snapshot store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// StoreOption customizes RedisStore.
type StoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// RedisStore keeps the stage and collected info of each conversation in Redis.
// Conversation history is not stored; it is rebuilt from the message log.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client RedisClient, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	store := &RedisStore{
		client:    client,
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*AgentState, error) {
	redisKey, err := s.redisKey(key)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get agent state: %w", err)
	}

	var st AgentState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("unmarshal agent state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent state loaded from store: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, st *AgentState) error {
	if st == nil {
		return ErrNilAgentState
	}
	if err := st.Validate(); err != nil {
		return err
	}
	redisKey, err := s.redisKey(st.Key())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal agent state: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, string(payload), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set agent state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	redisKey, err := s.redisKey(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis del agent state: %w", err)
	}
	return nil
}

func (s *RedisStore) redisKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	return s.keyPrefix + key, nil
}
