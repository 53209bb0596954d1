package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

type Config struct {
	PingTimeout      time.Duration `envconfig:"PING_TIMEOUT" split_words:"true" default:"2s"`
	PingCacheTTL     time.Duration `envconfig:"PING_CACHE_TTL" split_words:"true" default:"30s"`
	OpTimeout        time.Duration `envconfig:"OP_TIMEOUT" split_words:"true" default:"5s"`
	HighEngagement   int           `envconfig:"HIGH_ENGAGEMENT" split_words:"true" default:"10"`
	MediumEngagement int           `envconfig:"MEDIUM_ENGAGEMENT" split_words:"true" default:"5"`
	SimilarLimit     int           `envconfig:"SIMILAR_LIMIT" split_words:"true" default:"3"`
}

func DefaultConfig() Config {
	return Config{
		PingTimeout:      2 * time.Second,
		PingCacheTTL:     30 * time.Second,
		OpTimeout:        5 * time.Second,
		HighEngagement:   10,
		MediumEngagement: 5,
		SimilarLimit:     3,
	}
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the never-failing face of the graph memory. Every method checks
// connectivity first and degrades to false, empty or the fallback context.
type Service struct {
	store GraphStore
	cfg   Config
	now   func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	connected bool
}

var _ contractx.MemoryService = (*Service)(nil)

// NewService wraps store. A nil store yields a permanently disconnected service.
func NewService(store GraphStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		cfg:   DefaultConfig(),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connected reports graph reachability, reusing a recent ping result.
func (s *Service) Connected(ctx context.Context) bool {
	if s.store == nil {
		return false
	}

	s.mu.Lock()
	if !s.checkedAt.IsZero() && s.now().Sub(s.checkedAt) < s.cfg.PingCacheTTL {
		ok := s.connected
		s.mu.Unlock()
		return ok
	}
	s.mu.Unlock()

	pingCtx, cancel := withTimeout(ctx, s.cfg.PingTimeout)
	defer cancel()
	err := s.store.Ping(pingCtx)
	if err != nil {
		logx.Warn().Err(err).Str("dependency", "graph").Msg("graph store unreachable")
	}

	s.mu.Lock()
	s.connected = err == nil
	s.checkedAt = s.now()
	s.mu.Unlock()
	return err == nil
}

// EnsureSchema creates the uniqueness constraints. Failures are logged.
func (s *Service) EnsureSchema(ctx context.Context) bool {
	return s.do(ctx, "ensure_schema", func(ctx context.Context) error {
		return s.store.EnsureSchema(ctx)
	})
}

func (s *Service) CreateCustomer(ctx context.Context, customer contractx.Customer) bool {
	if strings.TrimSpace(customer.ID) == "" {
		return false
	}
	return s.do(ctx, "create_customer", func(ctx context.Context) error {
		return s.store.UpsertCustomer(ctx, customer, s.now())
	})
}

func (s *Service) CreateSession(ctx context.Context, customerID, sessionID string) bool {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(sessionID) == "" {
		return false
	}
	return s.do(ctx, "create_session", func(ctx context.Context) error {
		return s.store.MergeSession(ctx, customerID, sessionID, s.now())
	})
}

func (s *Service) AddMessageToSession(ctx context.Context, sessionID, content string, role contractx.Role, at time.Time) bool {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(content) == "" {
		return false
	}
	if at.IsZero() {
		at = s.now()
	}
	msg := Message{
		ID:        messageID(sessionID, role, content, at),
		SessionID: sessionID,
		Content:   content,
		Role:      role,
		CreatedAt: at,
	}
	return s.do(ctx, "add_message", func(ctx context.Context) error {
		return s.store.AddMessage(ctx, msg)
	})
}

func (s *Service) UpdateCustomerPreferences(ctx context.Context, customerID string, prefs map[string]any) bool {
	if strings.TrimSpace(customerID) == "" {
		return false
	}
	props := preferenceProps(prefs)
	if len(props) == 0 {
		return true
	}
	return s.do(ctx, "update_preferences", func(ctx context.Context) error {
		return s.store.SetPreferences(ctx, customerID, props, s.now())
	})
}

func (s *Service) GetCustomerContext(ctx context.Context, customerID string) contractx.CustomerMemoryContext {
	if strings.TrimSpace(customerID) == "" {
		return contractx.FallbackMemoryContext()
	}

	var snap Snapshot
	ok := s.do(ctx, "get_customer_context", func(ctx context.Context) error {
		var err error
		snap, err = s.store.CustomerSnapshot(ctx, customerID)
		return err
	})
	if !ok {
		return contractx.FallbackMemoryContext()
	}
	return s.contextFromSnapshot(snap)
}

func (s *Service) UpdateLeadScore(ctx context.Context, customerID string, score int, stage contractx.Stage) bool {
	if strings.TrimSpace(customerID) == "" {
		return false
	}
	score = min(max(score, 0), 100)
	return s.do(ctx, "update_lead_score", func(ctx context.Context) error {
		return s.store.SetLeadScore(ctx, customerID, score, stage, s.now())
	})
}

func (s *Service) FindSimilarProperties(ctx context.Context, customerID string, req contractx.LeadInfo) []contractx.Property {
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	q := SimilarQuery{
		PropertyType: string(req.PropertyType),
		Location:     strings.ToLower(strings.TrimSpace(req.Location)),
		Limit:        max(s.cfg.SimilarLimit, 1),
	}
	if c := contractx.CriteriaFromLeadInfo("", req); c.Budget != nil {
		q.Budget = *c.Budget
	}

	var props []contractx.Property
	s.do(ctx, "find_similar_properties", func(ctx context.Context) error {
		var err error
		props, err = s.store.SimilarProperties(ctx, customerID, q)
		return err
	})
	return props
}

// RecordViewedProperties links the customer to real listings they were
// shown. Sample listings are skipped.
func (s *Service) RecordViewedProperties(ctx context.Context, customerID string, props []contractx.Property) bool {
	if strings.TrimSpace(customerID) == "" {
		return false
	}
	listed := make([]contractx.Property, 0, len(props))
	for _, p := range props {
		if !p.Sample && p.ID != "" {
			listed = append(listed, p)
		}
	}
	if len(listed) == 0 {
		return true
	}
	return s.do(ctx, "record_viewed", func(ctx context.Context) error {
		return s.store.RecordViewed(ctx, customerID, listed, s.now())
	})
}

func (s *Service) do(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	if !s.Connected(ctx) {
		return false
	}

	opCtx, cancel := withTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := fn(opCtx); err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			logx.Debug().Str("op", op).Msg("graph customer not found")
			return false
		}
		logx.Warn().Err(err).Str("dependency", "graph").Str("op", op).Msg("graph operation failed")
		s.invalidate()
		return false
	}
	return true
}

// invalidate forces the next call to ping again.
func (s *Service) invalidate() {
	s.mu.Lock()
	s.checkedAt = time.Time{}
	s.mu.Unlock()
}

func (s *Service) contextFromSnapshot(snap Snapshot) contractx.CustomerMemoryContext {
	prefs := preferencesFromProps(snap.Properties)

	stage := snap.LeadStage
	if stage == "" {
		stage = string(contractx.StageGreeting)
	}

	return contractx.CustomerMemoryContext{
		Preferences: prefs,
		InteractionHistory: contractx.InteractionHistory{
			TotalConversations: max(snap.SessionCount, 1),
			EngagementLevel:    s.engagement(snap.MessageCount),
			LastInteraction:    snap.LastInteraction,
		},
		LeadJourney: contractx.LeadJourney{
			Stage:        stage,
			Score:        snap.LeadScore,
			Requirements: requirementsFrom(prefs),
		},
	}
}

func (s *Service) engagement(messages int) contractx.EngagementLevel {
	switch {
	case messages > s.cfg.HighEngagement:
		return contractx.EngagementHigh
	case messages > s.cfg.MediumEngagement:
		return contractx.EngagementMedium
	default:
		return contractx.EngagementLow
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
