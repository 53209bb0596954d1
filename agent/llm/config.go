package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	geminix "github.com/redlitmus-in/real-estate-crm/pkg/gemini"
	openrouterx "github.com/redlitmus-in/real-estate-crm/pkg/openrouter"
)

type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderGemini     Provider = "gemini"
	ProviderOpenAISDK  Provider = "openai"
	ProviderCanned     Provider = "canned"
)

// Purpose selects per-call-site model overrides.
type Purpose string

const (
	PurposeReply      Purpose = "reply"
	PurposeExtraction Purpose = "extraction"
)

const DefaultCannedReply = "Thanks for reaching out! Could you tell me a little about the property you are looking for?"

type Config struct {
	Provider    string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"20s"`
	CannedReply string        `envconfig:"CANNED_REPLY" split_words:"true"`

	ExtractionModel       string  `envconfig:"EXTRACTION_MODEL" split_words:"true"`
	ExtractionTemperature float32 `envconfig:"EXTRACTION_TEMPERATURE" split_words:"true" default:"0"`
	ReplyModel            string  `envconfig:"REPLY_MODEL" split_words:"true"`
	ReplyTemperature      float32 `envconfig:"REPLY_TEMPERATURE" split_words:"true" default:"-1"`

	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" split_words:"true" default:"3"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" split_words:"true" default:"30s"`
}

func (c Config) ProviderName() Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(c.Provider))) {
	case ProviderGemini:
		return ProviderGemini
	case ProviderOpenAISDK:
		return ProviderOpenAISDK
	case ProviderCanned:
		return ProviderCanned
	default:
		return ProviderOpenRouter
	}
}

func (c Config) Canned() string {
	if v := strings.TrimSpace(c.CannedReply); v != "" {
		return v
	}
	return DefaultCannedReply
}

func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: llm timeout must be >= 0", contractx.ErrValidation)
	}
	if c.ExtractionTemperature > 2 || c.ReplyTemperature > 2 {
		return fmt.Errorf("%w: temperature must be <= 2", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor applies the per-purpose model and temperature overrides.
func (c Config) OpenRouterFor(base openrouterx.Config, purpose Purpose) openrouterx.Config {
	out := base
	out.BaseURL = strings.TrimSpace(base.BaseURL)
	out.APIKey = strings.TrimSpace(base.APIKey)
	out.Model = strings.TrimSpace(base.Model)
	if base.MaxCompletionToken != nil {
		v := *base.MaxCompletionToken
		out.MaxCompletionToken = &v
	}

	model, temp := c.overrides(purpose)
	if model != "" {
		out.Model = model
	}
	if temp >= 0 {
		out.Temperature = temp
	}
	return out
}

func (c Config) GeminiFor(base geminix.Config, purpose Purpose) geminix.Config {
	out := base
	model, temp := c.overrides(purpose)
	if model != "" {
		out.Model = model
	}
	if temp >= 0 {
		out.Temperature = temp
	}
	return out
}

func (c Config) overrides(purpose Purpose) (string, float32) {
	switch purpose {
	case PurposeExtraction:
		return strings.TrimSpace(c.ExtractionModel), c.ExtractionTemperature
	default:
		return strings.TrimSpace(c.ReplyModel), c.ReplyTemperature
	}
}
