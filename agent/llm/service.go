package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	geminix "github.com/redlitmus-in/real-estate-crm/pkg/gemini"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
	openrouterx "github.com/redlitmus-in/real-estate-crm/pkg/openrouter"
)

// Completer is a raw provider call that may fail.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// ChatModelCompleter adapts an eino chat model.
type ChatModelCompleter struct {
	Model model.BaseChatModel
}

func (c ChatModelCompleter) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	msg, err := c.Model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: nil message", contractx.ErrModelInvoke)
	}
	return msg.Content, nil
}

// Service is the text completion component. Complete always returns a
// non-empty reply; when the provider is missing or fails the reply is the
// canned text and the error wraps contract.ErrDependencyUnavailable.
type Service struct {
	name      string
	completer Completer
	breaker   *CircuitBreaker
	canned    string
	timeout   time.Duration
}

var _ contractx.TextCompleter = (*Service)(nil)

type ServiceOption func(*Service)

func WithBreaker(b *CircuitBreaker) ServiceOption {
	return func(s *Service) {
		s.breaker = b
	}
}

func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithCannedReply(text string) ServiceOption {
	return func(s *Service) {
		if v := strings.TrimSpace(text); v != "" {
			s.canned = v
		}
	}
}

// NewService wraps completer. A nil completer yields a canned-only service.
func NewService(name string, completer Completer, opts ...ServiceOption) *Service {
	s := &Service{
		name:      name,
		completer: completer,
		canned:    DefaultCannedReply,
		timeout:   20 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker(BreakerConfig{Name: name})
	}
	return s
}

func (s *Service) Configured() bool {
	return s.completer != nil
}

func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	if s.completer == nil {
		return s.canned, fmt.Errorf("%w: %s completion not configured", contractx.ErrDependencyUnavailable, s.name)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.breaker.Execute(ctx, func() (string, error) {
		return s.completer.Complete(ctx, messages)
	})
	if err != nil {
		logx.Warn().Err(err).Str("dependency", "completion").Str("completer", s.name).Msg("completion failed, using canned reply")
		return s.canned, fmt.Errorf("%w: %s: %v", contractx.ErrDependencyUnavailable, s.name, err)
	}

	text := strings.TrimSpace(out)
	if text == "" {
		return s.canned, fmt.Errorf("%w: %s returned an empty completion", contractx.ErrDependencyUnavailable, s.name)
	}
	return text, nil
}

// Providers groups the per-provider client settings.
type Providers struct {
	OpenRouter openrouterx.Config
	Gemini     geminix.Config
}

// NewFromConfig builds the completion service for purpose. A provider that
// has no credential, or fails to build, degrades to the canned service.
func NewFromConfig(ctx context.Context, cfg Config, providers Providers, purpose Purpose) *Service {
	name := string(purpose)
	opts := []ServiceOption{
		WithTimeout(cfg.Timeout),
		WithCannedReply(cfg.Canned()),
		WithBreaker(NewCircuitBreaker(BreakerConfig{
			Name:        name,
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		})),
	}

	completer, err := buildCompleter(ctx, cfg, providers, purpose)
	if err != nil {
		logx.Warn().Err(err).Str("provider", string(cfg.ProviderName())).Str("purpose", name).Msg("completion provider unavailable, replies will be canned")
		return NewService(name, nil, opts...)
	}
	return NewService(name, completer, opts...)
}

func buildCompleter(ctx context.Context, cfg Config, providers Providers, purpose Purpose) (Completer, error) {
	switch cfg.ProviderName() {
	case ProviderCanned:
		return nil, fmt.Errorf("%w: canned provider selected", contractx.ErrDependencyUnavailable)

	case ProviderGemini:
		gcfg := cfg.GeminiFor(providers.Gemini, purpose)
		m, err := gcfg.New(ctx)
		if err != nil {
			return nil, err
		}
		return ChatModelCompleter{Model: m}, nil

	case ProviderOpenAISDK:
		ocfg := cfg.OpenRouterFor(providers.OpenRouter, purpose)
		client := openrouterx.NewClient(ocfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openrouter api key is empty", contractx.ErrDependencyUnavailable)
		}
		return openrouterx.NewSDKCompleter(client, ocfg)

	default:
		ocfg := cfg.OpenRouterFor(providers.OpenRouter, purpose)
		if ocfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openrouter api key is empty", contractx.ErrDependencyUnavailable)
		}
		m, err := ocfg.New(ctx)
		if err != nil {
			return nil, err
		}
		return ChatModelCompleter{Model: m}, nil
	}
}
