package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

var (
	ErrNilAgentState = errors.New("agent state is nil")
	ErrInvalidKey    = errors.New("customer id and conversation id are required")
	ErrUnknownStage  = errors.New("unknown stage")
)

// DefaultQualificationThreshold is the lead score at which a lead counts as qualified.
const DefaultQualificationThreshold = 70

// AgentState is the per (customer, conversation) dialogue state. Only
// CurrentStage and CollectedInfo live solely in process; the rest is rebuilt
// on every turn.
type AgentState struct {
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`

	CurrentStage  contractx.Stage    `json:"current_stage"`
	CollectedInfo contractx.LeadInfo `json:"collected_info"`

	ConversationHistory []contractx.Turn `json:"-"`
	LastInteraction     time.Time        `json:"last_interaction"`
	QualificationScore  int              `json:"qualification_score"`
}

// Key is the composite cache key for a conversation. The customer id is
// length-prefixed so ids containing the separator cannot collide.
func Key(customerID, conversationID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	conversationID = strings.TrimSpace(conversationID)
	if customerID == "" || conversationID == "" {
		return "", ErrInvalidKey
	}
	return joinKey(customerID, conversationID), nil
}

func joinKey(customerID, conversationID string) string {
	return strconv.Itoa(len(customerID)) + ":" + customerID + ":" + conversationID
}

func NewAgentState(customerID, conversationID string, now time.Time) *AgentState {
	return &AgentState{
		CustomerID:      customerID,
		ConversationID:  conversationID,
		CurrentStage:    contractx.StageGreeting,
		LastInteraction: now.UTC(),
	}
}

func (s *AgentState) Key() string {
	return joinKey(strings.TrimSpace(s.CustomerID), strings.TrimSpace(s.ConversationID))
}

func (s *AgentState) Touch(now time.Time) {
	s.LastInteraction = now.UTC()
}

func (s *AgentState) IsQualified(threshold int) bool {
	return s != nil && s.QualificationScore >= threshold
}

// SetStage moves to next and reports whether the move went backwards in the
// stage sequence.
func (s *AgentState) SetStage(next contractx.Stage) bool {
	backward := StageIndex(next) < StageIndex(s.CurrentStage)
	s.CurrentStage = next
	return backward
}

func (s *AgentState) AppendTurn(role contractx.Role, content string, at time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, contractx.Turn{
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	})
}

// Tail returns at most n of the most recent turns.
func (s *AgentState) Tail(n int) []contractx.Turn {
	if n <= 0 || len(s.ConversationHistory) == 0 {
		return nil
	}
	if len(s.ConversationHistory) <= n {
		return append([]contractx.Turn(nil), s.ConversationHistory...)
	}
	return append([]contractx.Turn(nil), s.ConversationHistory[len(s.ConversationHistory)-n:]...)
}

func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	out := *s
	out.CollectedInfo = s.CollectedInfo.Clone()
	out.ConversationHistory = append([]contractx.Turn(nil), s.ConversationHistory...)
	return &out
}

func (s *AgentState) Validate() error {
	if s == nil {
		return ErrNilAgentState
	}
	if _, err := Key(s.CustomerID, s.ConversationID); err != nil {
		return err
	}
	if StageIndex(s.CurrentStage) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStage, s.CurrentStage)
	}
	if s.QualificationScore < 0 || s.QualificationScore > 100 {
		return fmt.Errorf("%w: qualification score %d out of range", contractx.ErrValidation, s.QualificationScore)
	}
	return nil
}
