package extract

import (
	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

// MergeTurn folds a single-turn extraction into the collected info. Fields
// the turn did not produce keep their collected value.
func MergeTurn(collected, turn contractx.LeadInfo) contractx.LeadInfo {
	return overlay(collected, turn)
}

// MergeHistory folds the whole-history extraction into the collected info.
// The history result wins on every field it produced.
func MergeHistory(collected, history contractx.LeadInfo) contractx.LeadInfo {
	return overlay(collected, history)
}

func overlay(base, top contractx.LeadInfo) contractx.LeadInfo {
	out := base.Clone()
	top = top.Clone()

	out.Name = mergeString(out.Name, top.Name)
	out.Location = mergeString(out.Location, top.Location)
	out.PropertyType = contractx.PropertyType(mergeString(string(out.PropertyType), string(top.PropertyType)))
	out.BHKType = mergeString(out.BHKType, top.BHKType)
	out.Timeline = mergeString(out.Timeline, top.Timeline)
	out.Budget = mergeNumber(out.Budget, top.Budget)
	out.AreaSqft = mergeNumber(out.AreaSqft, top.AreaSqft)
	if top.BudgetRange != nil {
		out.BudgetRange = top.BudgetRange
	}
	return out
}

func mergeString(base, top string) string {
	if top != "" {
		return top
	}
	return base
}

func mergeNumber(base, top *float64) *float64 {
	if top != nil && *top > 0 {
		return top
	}
	return base
}
