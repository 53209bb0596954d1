package qualifiernode

import (
	"context"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

// EnsureSession makes sure the customer and session exist in memory.
// Failures are logged and ignored.
func EnsureSession(ctx context.Context, in *TurnState, memory contractx.MemoryService) (*TurnState, error) {
	if in == nil {
		return nil, ErrNilTurnState
	}

	if !memory.CreateCustomer(ctx, in.Customer) {
		logx.Debug().Str("customer_id", in.Customer.ID).Msg("memory customer not recorded")
	}
	if !memory.CreateSession(ctx, in.Customer.ID, in.ConversationID) {
		logx.Debug().Str("customer_id", in.Customer.ID).Str("conversation_id", in.ConversationID).Msg("memory session not recorded")
	}
	return in, nil
}

// LoadState loads or creates the conversation state and rebuilds its
// history from the caller's message log. The caller holds the key lock.
func LoadState(ctx context.Context, in *TurnState, cache *statex.Cache) (*TurnState, error) {
	if in == nil {
		return nil, ErrNilTurnState
	}

	st, created, err := cache.Load(ctx, in.Customer.ID, in.ConversationID, in.Now)
	if err != nil {
		return nil, err
	}
	if created {
		logx.Debug().Str("customer_id", in.Customer.ID).Str("conversation_id", in.ConversationID).Msg("agent state created")
	}
	if st.CollectedInfo.Name == "" {
		st.CollectedInfo.Name = firstName(in.Customer.Name)
	}

	st.ConversationHistory = RebuildHistory(in.History, in.Text, in.Now)
	st.Touch(in.Now)

	in.State = st
	return in, nil
}

// RebuildHistory maps the message log onto turns, dropping system and blank
// entries, and appends the current message unless the log already ends with it.
func RebuildHistory(messages []contractx.HistoryMessage, current string, now time.Time) []contractx.Turn {
	turns := make([]contractx.Turn, 0, len(messages)+1)
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		var role contractx.Role
		switch m.SenderType {
		case contractx.SenderCustomer:
			role = contractx.RoleUser
		case contractx.SenderAgent:
			role = contractx.RoleAssistant
		default:
			continue
		}
		turns = append(turns, contractx.Turn{Role: role, Content: content, Timestamp: m.CreatedAt.UTC()})
	}

	current = strings.TrimSpace(current)
	if n := len(turns); n > 0 && turns[n-1].Role == contractx.RoleUser && turns[n-1].Content == current {
		return turns
	}
	return append(turns, contractx.Turn{Role: contractx.RoleUser, Content: current, Timestamp: now.UTC()})
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
