package qualifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	inventoryx "github.com/redlitmus-in/real-estate-crm/agent/inventory"
	memoryx "github.com/redlitmus-in/real-estate-crm/agent/memory"
	nodex "github.com/redlitmus-in/real-estate-crm/agent/nodes/qualifier"
	promptx "github.com/redlitmus-in/real-estate-crm/agent/prompt"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
)

type Config struct {
	AgentName              string        `envconfig:"NAME" split_words:"true" default:"Priya"`
	CompanyName            string        `envconfig:"COMPANY_NAME" split_words:"true" default:"our realty team"`
	HistoryWindow          int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"5"`
	QualificationThreshold int           `envconfig:"QUALIFICATION_THRESHOLD" split_words:"true" default:"70"`
	CacheSize              int           `envconfig:"CACHE_SIZE" split_words:"true" default:"10000"`
	CacheTTL               time.Duration `envconfig:"CACHE_TTL" split_words:"true" default:"24h"`
}

// Deps are the collaborators of the agent. Nil entries get degraded defaults.
type Deps struct {
	Cache     *statex.Cache
	Memory    contractx.MemoryService
	Extractor contractx.TurnExtractor
	Inventory contractx.InventorySearcher
	Completer contractx.TextCompleter
	Prompts   promptx.PromptSet
}

type Option func(*Agent)

func WithNow(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent qualifies real-estate leads one message at a time.
type Agent struct {
	cache     *statex.Cache
	memory    contractx.MemoryService
	extractor contractx.TurnExtractor
	inventory contractx.InventorySearcher
	completer contractx.TextCompleter
	persona   string
	cfg       Config

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps, cfg Config, opts ...Option) (*Agent, error) {
	if strings.TrimSpace(deps.Prompts.Persona) == "" {
		return nil, fmt.Errorf("%w: persona", contractx.ErrPromptMissing)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 5
	}
	if cfg.QualificationThreshold <= 0 {
		cfg.QualificationThreshold = statex.DefaultQualificationThreshold
	}
	if strings.TrimSpace(cfg.AgentName) == "" {
		cfg.AgentName = "Priya"
	}
	if strings.TrimSpace(cfg.CompanyName) == "" {
		cfg.CompanyName = "our realty team"
	}

	a := &Agent{
		cache:     deps.Cache,
		memory:    deps.Memory,
		extractor: deps.Extractor,
		inventory: deps.Inventory,
		completer: deps.Completer,
		persona:   deps.Prompts.Persona,
		cfg:       cfg,
		now:       time.Now,
	}
	if a.cache == nil {
		a.cache = statex.NewCache(cfg.CacheSize, cfg.CacheTTL)
	}
	if a.memory == nil {
		a.memory = memoryx.NewService(nil)
	}
	if a.extractor == nil {
		a.extractor = noopExtractor{}
	}
	if a.inventory == nil {
		a.inventory = inventoryx.NewService(nil)
	}
	if a.completer == nil {
		a.completer = unavailableCompleter{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	graphRunner, err := a.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// ProcessMessage runs one turn. It never fails: any orchestration error or
// panic yields FallbackResponse and leaves the stored state untouched.
func (a *Agent) ProcessMessage(
	ctx context.Context,
	customer contractx.Customer,
	conversationID string,
	text string,
	history []contractx.HistoryMessage,
) (resp contractx.AIResponse) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("customer_id", customer.ID).
				Str("conversation_id", conversationID).
				Interface("panic", r).
				Msg("turn panicked")
			resp = nodex.FallbackResponse()
		}
	}()

	key, err := statex.Key(customer.ID, conversationID)
	if err != nil {
		logx.Warn().Err(err).Msg("turn rejected")
		return nodex.FallbackResponse()
	}

	unlock := a.cache.Lock(key)
	defer unlock()

	out, err := a.graphRunner.Invoke(ctx, nodex.GraphInput{
		Customer:       customer,
		ConversationID: conversationID,
		Text:           text,
		History:        history,
	})
	if err != nil {
		logx.Error().
			Err(fmt.Errorf("%w: %v", contractx.ErrOrchestration, err)).
			Str("customer_id", customer.ID).
			Str("conversation_id", conversationID).
			Msg("turn failed")
		return nodex.FallbackResponse()
	}

	logx.Info().
		Str("customer_id", customer.ID).
		Str("conversation_id", conversationID).
		Str("stage", string(out.Response.NextStage)).
		Float64("confidence", out.Response.Confidence).
		Bool("create_lead", out.Response.ShouldCreateLead).
		Msg("turn processed")
	return out.Response
}

// State returns a copy of the cached state of a conversation.
func (a *Agent) State(customerID, conversationID string) (*statex.AgentState, bool) {
	key, err := statex.Key(customerID, conversationID)
	if err != nil {
		return nil, false
	}
	return a.cache.Peek(key)
}

func (a *Agent) replyConfig() nodex.ReplyConfig {
	return nodex.ReplyConfig{
		AgentName:     a.cfg.AgentName,
		CompanyName:   a.cfg.CompanyName,
		Persona:       a.persona,
		HistoryWindow: a.cfg.HistoryWindow,
		Threshold:     a.cfg.QualificationThreshold,
	}
}

type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, string) contractx.LeadInfo {
	return contractx.LeadInfo{}
}

type unavailableCompleter struct{}

func (unavailableCompleter) Complete(context.Context, []*schema.Message) (string, error) {
	return nodex.FallbackMessage, fmt.Errorf("%w: completion not configured", contractx.ErrDependencyUnavailable)
}
