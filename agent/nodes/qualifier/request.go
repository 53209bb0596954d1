package qualifiernode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
)

var (
	ErrInvalidMessage  = errors.New("message is empty")
	ErrInvalidCustomer = errors.New("customer id is empty")
	ErrNilTurnState    = errors.New("turn state is nil")
)

type GraphInput struct {
	Customer       contractx.Customer
	ConversationID string
	Text           string
	History        []contractx.HistoryMessage
}

type GraphOutput struct {
	Response contractx.AIResponse
}

// TurnState carries one inbound message through the turn graph.
type TurnState struct {
	Customer       contractx.Customer
	ConversationID string
	Key            string
	Text           string
	Channel        string
	History        []contractx.HistoryMessage
	Now            time.Time

	State       *statex.AgentState
	Memory      contractx.CustomerMemoryContext
	TurnInfo    contractx.LeadInfo
	HistoryInfo contractx.LeadInfo

	EnoughContext bool
	Listings      []contractx.Property
	Similar       []contractx.Property

	Response contractx.AIResponse
	Canned   bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*TurnState, error) {
	customerID := strings.TrimSpace(in.Customer.ID)
	if customerID == "" {
		return nil, ErrInvalidCustomer
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	key, err := statex.Key(customerID, in.ConversationID)
	if err != nil {
		return nil, err
	}

	customer := in.Customer
	customer.ID = customerID

	return &TurnState{
		Customer:       customer,
		ConversationID: strings.TrimSpace(in.ConversationID),
		Key:            key,
		Text:           text,
		Channel:        channelOf(customer),
		History:        in.History,
		Now:            nowFn().UTC(),
	}, nil
}

func channelOf(c contractx.Customer) string {
	switch {
	case c.WhatsAppNumber != "":
		return "WhatsApp"
	case c.TelegramChatID != "":
		return "Telegram"
	case c.Email != "":
		return "email"
	default:
		return "chat"
	}
}

func requireState(in *TurnState) error {
	if in == nil {
		return ErrNilTurnState
	}
	if in.State == nil {
		return fmt.Errorf("%w: agent state is not loaded", contractx.ErrOrchestration)
	}
	return nil
}
