package qualifiernode

import (
	"context"

	"golang.org/x/sync/errgroup"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	extractx "github.com/redlitmus-in/real-estate-crm/agent/extract"
)

// GatherContext fetches the customer memory context and runs the per-turn
// extractor concurrently, then folds the turn result into collected info.
// Neither dependency can fail the turn.
func GatherContext(
	ctx context.Context,
	in *TurnState,
	memory contractx.MemoryService,
	extractor contractx.TurnExtractor,
) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	var (
		memCtx   contractx.CustomerMemoryContext
		turnInfo contractx.LeadInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		memCtx = memory.GetCustomerContext(gctx, in.Customer.ID)
		return nil
	})
	g.Go(func() error {
		turnInfo = extractor.Extract(gctx, in.Text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.Memory = memCtx
	in.TurnInfo = turnInfo
	in.State.QualificationScore = min(max(memCtx.LeadJourney.Score, 0), 100)
	in.State.CollectedInfo = extractx.MergeTurn(in.State.CollectedInfo, turnInfo)
	return in, nil
}
