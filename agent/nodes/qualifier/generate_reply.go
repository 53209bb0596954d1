package qualifiernode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	inventoryx "github.com/redlitmus-in/real-estate-crm/agent/inventory"
	promptx "github.com/redlitmus-in/real-estate-crm/agent/prompt"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

// ReplyConfig is the persona and context window of generated replies.
type ReplyConfig struct {
	AgentName     string
	CompanyName   string
	Persona       string
	HistoryWindow int
	Threshold     int
}

// GenerateReply asks the completer for the next question. When the completer
// can only offer its canned text, the stage-based fallback flow answers.
func GenerateReply(ctx context.Context, in *TurnState, completer contractx.TextCompleter, cfg ReplyConfig) (*TurnState, error) {
	if err := requireState(in); err != nil {
		return nil, err
	}

	info := in.State.CollectedInfo
	next := statex.NextStage(info)

	system, err := promptx.RenderPersona(ctx, cfg.Persona, personaVars(in, cfg, next))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)
	}

	messages := make([]*schema.Message, 0, cfg.HistoryWindow+1)
	messages = append(messages, schema.SystemMessage(system))
	for _, turn := range in.State.Tail(cfg.HistoryWindow) {
		switch turn.Role {
		case contractx.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}

	qualified := info.IsFullyQualified()
	reply, err := completer.Complete(ctx, messages)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil && !errors.Is(err, contractx.ErrDependencyUnavailable) {
			logx.Warn().Err(err).Str("customer_id", in.Customer.ID).Msg("completion failed")
		}
		fallback := statex.Successor(in.State.CurrentStage)
		in.Canned = true
		in.Response = contractx.AIResponse{
			Message:                StageQuestion(fallback),
			NextStage:              fallback,
			Actions:                statex.ActionsFor(fallback),
			ShouldCreateLead:       qualified,
			ShouldScheduleFollowUp: qualified,
			Confidence:             FallbackConfidence,
			ExtractedInfo:          info.ToMap(),
		}
		return in, nil
	}

	in.Response = contractx.AIResponse{
		Message:                strings.TrimSpace(reply),
		NextStage:              next,
		Actions:                statex.ActionsFor(next),
		ShouldCreateLead:       qualified,
		ShouldScheduleFollowUp: qualified,
		Confidence:             ReplyConfidence,
		ExtractedInfo:          info.ToMap(),
	}
	return in, nil
}

func personaVars(in *TurnState, cfg ReplyConfig, next contractx.Stage) promptx.PersonaVars {
	info := in.State.CollectedInfo
	mem := in.Memory

	vars := promptx.PersonaVars{
		AgentName:          cfg.AgentName,
		CompanyName:        cfg.CompanyName,
		Channel:            in.Channel,
		CustomerName:       info.Name,
		Engagement:         string(mem.InteractionHistory.EngagementLevel),
		TotalConversations: mem.InteractionHistory.TotalConversations,
		LeadStage:          mem.LeadJourney.Stage,
		LeadScore:          mem.LeadJourney.Score,
		Qualified:          in.State.IsQualified(cfg.Threshold),
		Preferences:        formatPreferences(mem.Preferences),
		Collected:          collectedLines(info),
		Goal:               stageGoal(next),
	}
	if vars.Engagement == "" {
		vars.Engagement = string(contractx.EngagementLow)
	}
	for _, p := range in.Similar {
		vars.Similar = append(vars.Similar, fmt.Sprintf("%s (%s)", p.Title, inventoryx.FormatPrice(p.PriceMin, p.PriceMax)))
	}
	return vars
}

func collectedLines(info contractx.LeadInfo) []string {
	var out []string
	if info.Name != "" {
		out = append(out, "Name: "+info.Name)
	}
	if info.PropertyType != "" {
		out = append(out, "Property type: "+string(info.PropertyType))
	}
	if info.BHKType != "" {
		out = append(out, "Configuration: "+info.BHKType)
	}
	switch {
	case info.BudgetRange != nil && info.BudgetRange.Min != info.BudgetRange.Max:
		out = append(out, "Budget: "+inventoryx.FormatPrice(info.BudgetRange.Min, info.BudgetRange.Max))
	case info.Budget != nil:
		out = append(out, "Budget: "+inventoryx.FormatPrice(*info.Budget, *info.Budget))
	}
	if info.Location != "" {
		out = append(out, "Location: "+info.Location)
	}
	if info.AreaSqft != nil {
		out = append(out, fmt.Sprintf("Area: %.0f sqft", *info.AreaSqft))
	}
	if info.Timeline != "" {
		out = append(out, "Timeline: "+info.Timeline)
	}
	return out
}

func formatPreferences(prefs map[string]any) string {
	if len(prefs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, prefs[k]))
	}
	return strings.Join(parts, ", ")
}
