package qualifiernode

import (
	"context"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

func RecordInbound(ctx context.Context, in *TurnState, memory contractx.MemoryService) (*TurnState, error) {
	if in == nil {
		return nil, ErrNilTurnState
	}
	if !memory.AddMessageToSession(ctx, in.ConversationID, in.Text, contractx.RoleUser, in.Now) {
		logx.Debug().Str("customer_id", in.Customer.ID).Str("conversation_id", in.ConversationID).Msg("inbound turn not recorded")
	}
	return in, nil
}

// RecordOutbound stores the reply in memory and appends it to the
// in-process history.
func RecordOutbound(ctx context.Context, in *TurnState, memory contractx.MemoryService, nowFn func() time.Time) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	at := nowFn().UTC()
	if !at.After(in.Now) {
		at = in.Now.Add(time.Millisecond)
	}
	if !memory.AddMessageToSession(ctx, in.ConversationID, in.Response.Message, contractx.RoleAssistant, at) {
		logx.Debug().Str("customer_id", in.Customer.ID).Str("conversation_id", in.ConversationID).Msg("outbound turn not recorded")
	}
	in.State.AppendTurn(contractx.RoleAssistant, in.Response.Message, at)
	return in, nil
}
