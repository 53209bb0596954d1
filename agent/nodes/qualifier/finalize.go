package qualifiernode

import (
	"fmt"
	"strings"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
)

func Finalize(in *TurnState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, ErrNilTurnState
	}

	resp := in.Response
	if strings.TrimSpace(resp.Message) == "" {
		return GraphOutput{}, fmt.Errorf("%w: reply is empty", contractx.ErrOrchestration)
	}
	if resp.Actions == nil {
		resp.Actions = []string{}
	}
	if resp.ExtractedInfo == nil {
		resp.ExtractedInfo = map[string]any{}
	}
	return GraphOutput{Response: resp}, nil
}

// FallbackResponse is returned when the turn itself cannot be completed.
func FallbackResponse() contractx.AIResponse {
	return contractx.AIResponse{
		Message:       FallbackMessage,
		NextStage:     contractx.StageGreeting,
		Actions:       statex.ActionsFor(contractx.StageGreeting),
		Confidence:    ErrorConfidence,
		ExtractedInfo: map[string]any{},
	}
}
