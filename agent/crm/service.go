package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

type Config struct {
	HistoryLimit        int           `split_words:"true" default:"50"`
	FollowUpDelay       time.Duration `split_words:"true" default:"24h"`
	FollowUpDestination string        `split_words:"true"`
}

// Agent is the conversational agent the CRM hands each inbound message to.
type Agent interface {
	ProcessMessage(ctx context.Context, customer contractx.Customer, conversationID, text string, history []contractx.HistoryMessage) contractx.AIResponse
}

// SignatureVerifier checks that a follow-up delivery came from the scheduler.
type SignatureVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

type Inbound struct {
	CustomerID     string
	ConversationID string
	Text           string
}

// Outcome is what the delivery adapter sends back plus the intents acted on.
type Outcome struct {
	Response   contractx.AIResponse
	LeadID     string
	FollowUpID string
}

// FollowUpDelivery is a scheduled follow-up arriving at the CRM endpoint.
type FollowUpDelivery struct {
	Signature   string
	Destination string
	Body        []byte
}

type Option func(*Service)

func WithScheduler(s FollowUpScheduler) Option {
	return func(svc *Service) {
		svc.scheduler = s
	}
}

func WithVerifier(v SignatureVerifier) Option {
	return func(svc *Service) {
		svc.verifier = v
	}
}

func WithNow(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// Service runs the inbound message flow around the agent.
type Service struct {
	repo      Repository
	agent     Agent
	scheduler FollowUpScheduler
	verifier  SignatureVerifier
	cfg       Config
	now       func() time.Time
}

func NewService(repo Repository, agent Agent, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("crm repository is required")
	}
	if agent == nil {
		return nil, errors.New("crm agent is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = DefaultFollowUpDelay
	}
	svc := &Service{
		repo:  repo,
		agent: agent,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// HandleInbound records the customer's message, runs the agent, records the
// reply and acts on the lead and follow-up intents. Only a missing customer
// or a failure to record the reply is returned; intent failures are logged.
func (s *Service) HandleInbound(ctx context.Context, in Inbound) (Outcome, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.ConversationID = strings.TrimSpace(in.ConversationID)
	if in.CustomerID == "" || in.ConversationID == "" {
		return Outcome{}, fmt.Errorf("%w: customer and conversation ids are required", contractx.ErrValidation)
	}

	customer, err := s.repo.Customer(ctx, in.CustomerID)
	if err != nil {
		return Outcome{}, err
	}

	history, err := s.repo.Messages(ctx, in.ConversationID, s.cfg.HistoryLimit)
	if err != nil {
		logx.Warn().Err(err).
			Str("customer_id", customer.ID).
			Str("conversation_id", in.ConversationID).
			Msg("message log unavailable, continuing without history")
		history = nil
	}

	received := s.now()
	if err := s.repo.AppendMessage(ctx, Message{
		ConversationID: in.ConversationID,
		CustomerID:     customer.ID,
		Content:        in.Text,
		SenderType:     contractx.SenderCustomer,
		CreatedAt:      received,
	}); err != nil {
		logx.Warn().Err(err).
			Str("customer_id", customer.ID).
			Str("conversation_id", in.ConversationID).
			Msg("inbound message not recorded")
	}

	resp := s.agent.ProcessMessage(ctx, customer, in.ConversationID, in.Text, history)
	out := Outcome{Response: resp}

	replied := s.now()
	if !replied.After(received) {
		replied = received.Add(time.Millisecond)
	}
	if err := s.repo.AppendMessage(ctx, Message{
		ConversationID: in.ConversationID,
		CustomerID:     customer.ID,
		Content:        resp.Message,
		SenderType:     contractx.SenderAgent,
		CreatedAt:      replied,
	}); err != nil {
		return out, fmt.Errorf("record reply: %w", err)
	}

	if resp.ShouldCreateLead {
		out.LeadID = s.createLead(ctx, customer, in.ConversationID, resp, replied)
	}
	if resp.ShouldScheduleFollowUp {
		out.FollowUpID = s.scheduleFollowUp(ctx, customer, in.ConversationID, out.LeadID, resp, replied)
	}
	return out, nil
}

func (s *Service) createLead(ctx context.Context, customer contractx.Customer, conversationID string, resp contractx.AIResponse, at time.Time) string {
	lead := Lead{
		ID:             LeadID(customer.CompanyID, customer.ID),
		CompanyID:      customer.CompanyID,
		CustomerID:     customer.ID,
		ConversationID: conversationID,
		Stage:          resp.NextStage,
		Status:         leadStatusQualified,
		Requirements:   resp.ExtractedInfo,
		UpdatedAt:      at,
	}
	if err := s.repo.UpsertLead(ctx, lead); err != nil {
		logx.Warn().Err(err).
			Str("customer_id", customer.ID).
			Str("conversation_id", conversationID).
			Msg("qualified lead not saved")
		return ""
	}
	logx.Info().
		Str("customer_id", customer.ID).
		Str("lead_id", lead.ID).
		Msg("qualified lead saved")
	return lead.ID
}

func (s *Service) scheduleFollowUp(ctx context.Context, customer contractx.Customer, conversationID, leadID string, resp contractx.AIResponse, at time.Time) string {
	if s.scheduler == nil {
		logx.Debug().
			Str("customer_id", customer.ID).
			Msg("follow-up requested but no scheduler configured")
		return ""
	}
	id, err := s.scheduler.Schedule(ctx, FollowUp{
		LeadID:         leadID,
		CompanyID:      customer.CompanyID,
		CustomerID:     customer.ID,
		ConversationID: conversationID,
		Stage:          resp.NextStage,
		DueAt:          at.Add(s.cfg.FollowUpDelay).UTC(),
	})
	if err != nil {
		logx.Warn().Err(err).
			Str("customer_id", customer.ID).
			Str("conversation_id", conversationID).
			Msg("follow-up not scheduled")
		return ""
	}
	return id
}

// HandleFollowUp verifies a scheduled delivery and records the follow-up
// nudge in the conversation. The returned text is for the delivery adapter.
func (s *Service) HandleFollowUp(ctx context.Context, d FollowUpDelivery) (string, error) {
	if s.verifier != nil {
		if err := s.verifier.Verify(d.Signature, d.Body, d.Destination); err != nil {
			return "", err
		}
	}

	var f FollowUp
	if err := json.Unmarshal(d.Body, &f); err != nil {
		return "", fmt.Errorf("%w: follow-up payload: %v", contractx.ErrValidation, err)
	}
	if f.CustomerID == "" || f.ConversationID == "" {
		return "", fmt.Errorf("%w: follow-up without customer or conversation", contractx.ErrValidation)
	}

	customer, err := s.repo.Customer(ctx, f.CustomerID)
	if err != nil {
		return "", err
	}

	text := FollowUpMessage(customer.Name)
	if err := s.repo.AppendMessage(ctx, Message{
		ConversationID: f.ConversationID,
		CustomerID:     customer.ID,
		Content:        text,
		SenderType:     contractx.SenderAgent,
		CreatedAt:      s.now(),
	}); err != nil {
		return "", fmt.Errorf("record follow-up: %w", err)
	}
	return text, nil
}

func FollowUpMessage(name string) string {
	first := strings.TrimSpace(name)
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	if first == "" {
		return "Hi! Just checking in on your property search. Would you like to see a few more options or plan a site visit this week?"
	}
	return fmt.Sprintf("Hi %s! Just checking in on your property search. Would you like to see a few more options or plan a site visit this week?", first)
}
