package state

import (
	"fmt"
	"strings"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

var stageOrder = []contractx.Stage{
	contractx.StageGreeting,
	contractx.StageNameCollection,
	contractx.StageQualification,
	contractx.StageBudgetCollection,
	contractx.StageLocationCollection,
	contractx.StagePropertyMatching,
	contractx.StageScheduling,
	contractx.StageFollowUp,
}

var stageActions = map[contractx.Stage][]string{
	contractx.StageGreeting:           {"greet_customer"},
	contractx.StageNameCollection:     {"collect_name"},
	contractx.StageQualification:      {"collect_requirements"},
	contractx.StageBudgetCollection:   {"collect_budget"},
	contractx.StageLocationCollection: {"collect_location"},
	contractx.StagePropertyMatching:   {"search_properties", "create_qualified_lead"},
	contractx.StageScheduling:         {"schedule_site_visit"},
	contractx.StageFollowUp:           {"schedule_follow_up"},
}

// Stages returns the stage sequence in order.
func Stages() []contractx.Stage {
	return append([]contractx.Stage(nil), stageOrder...)
}

// StageIndex returns the position of s in the stage sequence, or -1.
func StageIndex(s contractx.Stage) int {
	for i, v := range stageOrder {
		if v == s {
			return i
		}
	}
	return -1
}

func ParseStage(v string) (contractx.Stage, error) {
	s := contractx.Stage(strings.ToLower(strings.TrimSpace(v)))
	if StageIndex(s) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, v)
	}
	return s, nil
}

// Successor is the content-independent fallback flow. follow_up is its own
// successor; unknown stages restart at greeting.
func Successor(s contractx.Stage) contractx.Stage {
	idx := StageIndex(s)
	if idx < 0 {
		return contractx.StageGreeting
	}
	if idx == len(stageOrder)-1 {
		return stageOrder[idx]
	}
	return stageOrder[idx+1]
}

// NextStage recomputes the stage from scratch out of the merged preferences.
// It may move backwards when a field is found missing.
func NextStage(info contractx.LeadInfo) contractx.Stage {
	switch {
	case info.Name == "":
		return contractx.StageNameCollection
	case info.PropertyType == "":
		return contractx.StageQualification
	case !info.HasBudget():
		return contractx.StageBudgetCollection
	case info.Location == "":
		return contractx.StageLocationCollection
	case info.IsFullyQualified():
		return contractx.StagePropertyMatching
	default:
		return contractx.StageQualification
	}
}

// ActionsFor returns a copy of the action list for a stage.
func ActionsFor(s contractx.Stage) []string {
	return append([]string{}, stageActions[s]...)
}
