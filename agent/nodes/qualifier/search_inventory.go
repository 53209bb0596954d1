package qualifiernode

import (
	"context"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

// SearchInventory looks up listings for the collected info. With no
// listings it asks memory for properties similar customers viewed.
func SearchInventory(
	ctx context.Context,
	in *TurnState,
	inventory contractx.InventorySearcher,
	memory contractx.MemoryService,
) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	info := in.State.CollectedInfo
	in.Listings = inventory.Search(ctx, contractx.CriteriaFromLeadInfo(in.Customer.CompanyID, info))
	if len(in.Listings) == 0 {
		in.Similar = memory.FindSimilarProperties(ctx, in.Customer.ID, info)
	}

	logx.Debug().
		Str("customer_id", in.Customer.ID).
		Str("conversation_id", in.ConversationID).
		Int("listings", len(in.Listings)).
		Int("similar", len(in.Similar)).
		Msg("inventory searched")
	return in, nil
}
