package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

const defaultTurnTimeout = 15 * time.Second

type turnFields struct {
	Location     string `json:"location"`
	PropertyType string `json:"propertyType"`
	BHKType      string `json:"bhkType"`
	Budget       any    `json:"budget"`
	Timeline     string `json:"timeline"`
}

// TurnOption customizes TurnExtractor.
type TurnOption func(*TurnExtractor)

func WithTurnTimeout(d time.Duration) TurnOption {
	return func(e *TurnExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// TurnExtractor asks the completion model for the structured fields of one
// message. It under-extracts by design and never fails the turn.
type TurnExtractor struct {
	completer contractx.TextCompleter
	prompt    string
	parser    schema.MessageParser[turnFields]
	timeout   time.Duration
}

var _ contractx.TurnExtractor = (*TurnExtractor)(nil)

func NewTurnExtractor(completer contractx.TextCompleter, prompt string, opts ...TurnOption) (*TurnExtractor, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: text completer is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: extractor", contractx.ErrPromptMissing)
	}

	e := &TurnExtractor{
		completer: completer,
		prompt:    prompt,
		parser: schema.NewMessageJSONParser[turnFields](&schema.MessageJSONParseConfig{
			ParseFrom: schema.MessageParseFromContent,
		}),
		timeout: defaultTurnTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *TurnExtractor) Extract(ctx context.Context, text string) contractx.LeadInfo {
	text = strings.TrimSpace(text)
	if text == "" {
		return contractx.LeadInfo{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.completer.Complete(ctx, []*schema.Message{
		schema.SystemMessage(e.prompt),
		schema.UserMessage(text),
	})
	if err != nil {
		logx.Warn().Err(err).Str("dependency", "completion").Msg("turn extraction skipped")
		return contractx.LeadInfo{}
	}

	info, err := e.parse(ctx, raw)
	if err != nil {
		logx.Warn().Err(err).Msg("turn extraction discarded")
		return contractx.LeadInfo{}
	}
	return info
}

func (e *TurnExtractor) parse(ctx context.Context, raw string) (contractx.LeadInfo, error) {
	body := jsonObject(raw)
	if body == "" {
		return contractx.LeadInfo{}, fmt.Errorf("%w: no json object in output", contractx.ErrExtractionParse)
	}

	fields, err := e.parser.Parse(ctx, schema.AssistantMessage(body, nil))
	if err != nil {
		return contractx.LeadInfo{}, fmt.Errorf("%w: %v", contractx.ErrExtractionParse, err)
	}

	var info contractx.LeadInfo
	if loc := strings.TrimSpace(fields.Location); loc != "" && !isNullWord(loc) {
		info.Location = NormalizeLocation(loc)
	}
	if pt, ok := contractx.ParsePropertyType(fields.PropertyType); ok {
		info.PropertyType = pt
	}
	info.BHKType = NormalizeBHK(fields.BHKType)
	if b, ok := budgetValue(fields.Budget); ok {
		info.Budget = &b
	}
	if tl := strings.TrimSpace(fields.Timeline); tl != "" && !isNullWord(tl) {
		info.Timeline = strings.ToLower(tl)
	}
	return info, nil
}

// jsonObject strips code fences and chatter around the first JSON object.
func jsonObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func budgetValue(v any) (float64, bool) {
	switch b := v.(type) {
	case float64:
		return b, b > 0
	case int:
		return float64(b), b > 0
	case int64:
		return float64(b), b > 0
	case json.Number:
		f, err := b.Float64()
		return f, err == nil && f > 0
	case string:
		if isNullWord(b) {
			return 0, false
		}
		return NormalizeBudget(b)
	default:
		return 0, false
	}
}

func isNullWord(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "null", "none", "n/a", "unknown":
		return true
	}
	return false
}
