package qualifier

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	nodex "github.com/redlitmus-in/real-estate-crm/agent/nodes/qualifier"
)

func (a *Agent) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.TurnState, error) {
			return nodex.ValidateRequest(in, a.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("ensure_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.EnsureSession(ctx, in, a.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node ensure_session: %w", err)
	}

	if err := graph.AddLambdaNode("load_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.LoadState(ctx, in, a.cache)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_state: %w", err)
	}

	if err := graph.AddLambdaNode("gather_context",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.GatherContext(ctx, in, a.memory, a.extractor)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node gather_context: %w", err)
	}

	if err := graph.AddLambdaNode("record_inbound",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.RecordInbound(ctx, in, a.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_inbound: %w", err)
	}

	if err := graph.AddLambdaNode("merge_history",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.MergeHistory(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node merge_history: %w", err)
	}

	if err := graph.AddLambdaNode("search_inventory",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.SearchInventory(ctx, in, a.inventory, a.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node search_inventory: %w", err)
	}

	if err := graph.AddLambdaNode("compose_listing",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.ComposeListing(ctx, in, a.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_listing: %w", err)
	}

	if err := graph.AddLambdaNode("generate_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.GenerateReply(ctx, in, a.completer, a.replyConfig())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("record_outbound",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.RecordOutbound(ctx, in, a.memory, a.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_outbound: %w", err)
	}

	if err := graph.AddLambdaNode("save_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.SaveState(ctx, in, a.cache)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_state: %w", err)
	}

	if err := graph.AddLambdaNode("write_back",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.WriteBack(ctx, in, a.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node write_back: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (nodex.GraphOutput, error) {
			return nodex.Finalize(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	contextBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.TurnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			if in.EnoughContext {
				return "search_inventory", nil
			}
			return "generate_reply", nil
		},
		map[string]bool{
			"search_inventory": true,
			"generate_reply":   true,
		},
	)
	if err := graph.AddBranch("merge_history", contextBranch); err != nil {
		return nil, fmt.Errorf("add branch merge_history: %w", err)
	}

	listingBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.TurnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			if len(in.Listings) > 0 {
				return "compose_listing", nil
			}
			return "generate_reply", nil
		},
		map[string]bool{
			"compose_listing": true,
			"generate_reply":  true,
		},
	)
	if err := graph.AddBranch("search_inventory", listingBranch); err != nil {
		return nil, fmt.Errorf("add branch search_inventory: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "ensure_session"},
		{"ensure_session", "load_state"},
		{"load_state", "gather_context"},
		{"gather_context", "record_inbound"},
		{"record_inbound", "merge_history"},
		{"compose_listing", "record_outbound"},
		{"generate_reply", "record_outbound"},
		{"record_outbound", "save_state"},
		{"save_state", "write_back"},
		{"write_back", "finalize"},
		{"finalize", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("qualifier.process_message"))
	if err != nil {
		return nil, fmt.Errorf("compile qualifier graph: %w", err)
	}
	return runner, nil
}
