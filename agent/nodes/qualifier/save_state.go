package qualifiernode

import (
	"context"

	"golang.org/x/sync/errgroup"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

// SaveState applies the response stage and stores the state.
func SaveState(ctx context.Context, in *TurnState, cache *statex.Cache) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	from := in.State.CurrentStage
	if in.State.SetStage(in.Response.NextStage) {
		logx.Debug().
			Str("customer_id", in.Customer.ID).
			Str("conversation_id", in.ConversationID).
			Str("from", string(from)).
			Str("to", string(in.Response.NextStage)).
			Msg("stage moved backwards")
	}

	if err := cache.Save(ctx, in.State); err != nil {
		return nil, err
	}
	return in, nil
}

// WriteBack pushes the coverage score and merged preferences to memory.
// Both writes are best-effort.
func WriteBack(ctx context.Context, in *TurnState, memory contractx.MemoryService) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	info := in.State.CollectedInfo
	score := CoverageScore(info)

	var g errgroup.Group
	g.Go(func() error {
		if !memory.UpdateLeadScore(ctx, in.Customer.ID, score, in.Response.NextStage) {
			logx.Debug().Str("customer_id", in.Customer.ID).Msg("lead score not written back")
		}
		return nil
	})
	g.Go(func() error {
		if !memory.UpdateCustomerPreferences(ctx, in.Customer.ID, info.ToMap()) {
			logx.Debug().Str("customer_id", in.Customer.ID).Msg("preferences not written back")
		}
		return nil
	})
	_ = g.Wait()
	return in, nil
}

// CoverageScore rates how much of the requirement set is known, 0 to 100.
// The four qualifying fields carry 80 points.
func CoverageScore(info contractx.LeadInfo) int {
	score := 0
	if info.Name != "" {
		score += 20
	}
	if info.PropertyType != "" {
		score += 20
	}
	if info.HasBudget() {
		score += 20
	}
	if info.Location != "" {
		score += 20
	}
	if info.BHKType != "" {
		score += 10
	}
	if info.Timeline != "" {
		score += 10
	}
	return score
}
