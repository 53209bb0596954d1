package qualifiernode

import (
	extractx "github.com/redlitmus-in/real-estate-crm/agent/extract"
)

// MergeHistory re-scans the whole conversation and lets its result win over
// the collected info. A name on the customer record outranks both.
func MergeHistory(in *TurnState) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	in.HistoryInfo = extractx.FromHistory(in.State.ConversationHistory)
	merged := extractx.MergeHistory(in.State.CollectedInfo, in.HistoryInfo)
	if name := firstName(in.Customer.Name); name != "" {
		merged.Name = name
	}
	in.State.CollectedInfo = merged
	in.EnoughContext = extractx.HasEnoughContext(merged)
	return in, nil
}
