package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	"github.com/redlitmus-in/real-estate-crm/pkg/qstash"
)

var (
	ErrSchedulerNotConfigured = errors.New("follow-up scheduler not configured")
)

const DefaultFollowUpDelay = 24 * time.Hour

// FollowUp is the payload delivered back to the CRM when a follow-up is due.
type FollowUp struct {
	LeadID         string          `json:"lead_id,omitempty"`
	CompanyID      string          `json:"company_id"`
	CustomerID     string          `json:"customer_id"`
	ConversationID string          `json:"conversation_id"`
	Stage          contractx.Stage `json:"stage"`
	DueAt          time.Time       `json:"due_at"`
}

type FollowUpScheduler interface {
	Schedule(ctx context.Context, f FollowUp) (string, error)
}

// Publisher is the subset of the QStash client the scheduler needs.
type Publisher interface {
	Publish(ctx context.Context, req qstash.PublishRequest) (string, error)
}

// QStashScheduler hands follow-ups to QStash as delayed messages addressed to
// the CRM's follow-up endpoint.
type QStashScheduler struct {
	publisher   Publisher
	destination string
	delay       time.Duration
	retries     *int
}

type SchedulerOption func(*QStashScheduler)

func WithRetries(n int) SchedulerOption {
	return func(s *QStashScheduler) {
		if n >= 0 {
			s.retries = &n
		}
	}
}

func NewQStashScheduler(publisher Publisher, destination string, delay time.Duration, opts ...SchedulerOption) (*QStashScheduler, error) {
	if publisher == nil || strings.TrimSpace(destination) == "" {
		return nil, ErrSchedulerNotConfigured
	}
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	s := &QStashScheduler{
		publisher:   publisher,
		destination: strings.TrimSpace(destination),
		delay:       delay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Delay is how long after a turn the follow-up fires.
func (s *QStashScheduler) Delay() time.Duration {
	return s.delay
}

func (s *QStashScheduler) Schedule(ctx context.Context, f FollowUp) (string, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal follow-up: %w", err)
	}
	id, err := s.publisher.Publish(ctx, qstash.PublishRequest{
		Destination:     s.destination,
		Body:            body,
		Delay:           s.delay,
		DeduplicationID: dedupID(f),
		Retries:         s.retries,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// One follow-up per conversation and stage.
func dedupID(f FollowUp) string {
	return strings.Join([]string{f.CustomerID, f.ConversationID, string(f.Stage)}, "-")
}
