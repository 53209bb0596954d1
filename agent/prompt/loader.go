package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/extractor.txt
	extractorRaw string

	//go:embed template/persona.txt
	personaRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Extractor string
	Persona   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Extractor: strings.TrimSpace(extractorRaw),
		Persona:   strings.TrimSpace(personaRaw),
	}
}

// PersonaVars are the values the reply system prompt is rendered with.
type PersonaVars struct {
	AgentName          string
	CompanyName        string
	Channel            string
	CustomerName       string
	Engagement         string
	TotalConversations int
	LeadStage          string
	LeadScore          int
	Qualified          bool
	Preferences        string
	Collected          []string
	Goal               string
	Similar            []string
}

// RenderPersona renders the persona template through the eino prompt
// component so prompt callbacks fire.
func RenderPersona(ctx context.Context, tmpl string, vars PersonaVars) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("persona prompt is empty")
	}

	tpl := einoprompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tmpl))
	msgs, err := tpl.Format(ctx, map[string]any{
		"AgentName":          vars.AgentName,
		"CompanyName":        vars.CompanyName,
		"Channel":            vars.Channel,
		"CustomerName":       vars.CustomerName,
		"Engagement":         vars.Engagement,
		"TotalConversations": vars.TotalConversations,
		"LeadStage":          vars.LeadStage,
		"LeadScore":          vars.LeadScore,
		"Qualified":          vars.Qualified,
		"Preferences":        vars.Preferences,
		"Collected":          vars.Collected,
		"Goal":               vars.Goal,
		"Similar":            vars.Similar,
	})
	if err != nil {
		return "", fmt.Errorf("persona prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("persona prompt render: empty result")
	}
	return msgs[0].Content, nil
}
