package qualifiernode

import (
	"context"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	inventoryx "github.com/redlitmus-in/real-estate-crm/agent/inventory"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

const (
	ListingConfidence  = 0.95
	ReplyConfidence    = 0.9
	FallbackConfidence = 0.8
	ErrorConfidence    = 0.7
)

// ComposeListing answers with the found listings directly, skipping the
// completion call.
func ComposeListing(ctx context.Context, in *TurnState, memory contractx.MemoryService) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	listings := in.Listings
	if len(listings) > inventoryx.MaxResults {
		listings = listings[:inventoryx.MaxResults]
	}
	info := in.State.CollectedInfo

	in.Response = contractx.AIResponse{
		Message:                inventoryx.FormatListing(info.Name, listings),
		NextStage:              contractx.StagePropertyMatching,
		Actions:                statex.ActionsFor(contractx.StagePropertyMatching),
		ShouldCreateLead:       true,
		ShouldScheduleFollowUp: true,
		Confidence:             ListingConfidence,
		ExtractedInfo:          info.ToMap(),
	}

	if !memory.RecordViewedProperties(ctx, in.Customer.ID, listings) {
		logx.Debug().Str("customer_id", in.Customer.ID).Msg("viewed properties not recorded")
	}
	return in, nil
}
