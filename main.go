package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/bun"

	"github.com/redlitmus-in/real-estate-crm/agent/agents/qualifier"
	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	crmx "github.com/redlitmus-in/real-estate-crm/agent/crm"
	extractx "github.com/redlitmus-in/real-estate-crm/agent/extract"
	inventoryx "github.com/redlitmus-in/real-estate-crm/agent/inventory"
	llmx "github.com/redlitmus-in/real-estate-crm/agent/llm"
	memoryx "github.com/redlitmus-in/real-estate-crm/agent/memory"
	promptx "github.com/redlitmus-in/real-estate-crm/agent/prompt"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
	configx "github.com/redlitmus-in/real-estate-crm/pkg/config"
	geminix "github.com/redlitmus-in/real-estate-crm/pkg/gemini"
	logx "github.com/redlitmus-in/real-estate-crm/pkg/logger"
	_ "github.com/redlitmus-in/real-estate-crm/pkg/logger/autoload"
	neo4jx "github.com/redlitmus-in/real-estate-crm/pkg/neo4jdb"
	openrouterx "github.com/redlitmus-in/real-estate-crm/pkg/openrouter"
	postgresx "github.com/redlitmus-in/real-estate-crm/pkg/postgres"
	qstashx "github.com/redlitmus-in/real-estate-crm/pkg/qstash"
	redisx "github.com/redlitmus-in/real-estate-crm/pkg/redis"
)

type AppConfig struct {
	Environment    string `split_words:"true" default:"development"`
	DemoCustomerID string `split_words:"true" default:"demo-customer"`
	DemoCompanyID  string `split_words:"true" default:"demo-company"`
	DemoName       string `split_words:"true" default:"Ravi Kumar"`
}

var demoScript = []string{
	"Hi, I'm looking for a 3BHK villa",
	"My budget is 50 lakhs and I prefer Coimbatore",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	env := configx.ParseEnvironment(appCfg.Environment)

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	if err := llmCfg.Validate(); err != nil {
		logx.Fatal().Err(err).Msg("invalid llm config")
	}
	providers := llmx.Providers{
		OpenRouter: *configx.MustNew[openrouterx.Config]("OPENROUTER"),
		Gemini:     *configx.MustNew[geminix.Config]("GEMINI"),
	}
	replies := llmx.NewFromConfig(ctx, *llmCfg, providers, llmx.PurposeReply)
	extraction := llmx.NewFromConfig(ctx, *llmCfg, providers, llmx.PurposeExtraction)

	prompts := promptx.LoadPromptSet()
	extractor, err := extractx.NewTurnExtractor(extraction, prompts.Extractor)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build turn extractor")
	}

	memory, closeGraph := newMemory(ctx)
	defer closeGraph()
	inventory, db := newInventory(ctx)
	if db != nil {
		defer db.Close()
	}

	agentCfg := configx.MustNew[qualifier.Config]("AGENT")
	cache := statex.NewCache(agentCfg.CacheSize, agentCfg.CacheTTL, newSnapshotStore(ctx)...)

	agent, err := qualifier.New(qualifier.Deps{
		Cache:     cache,
		Memory:    memory,
		Extractor: extractor,
		Inventory: inventory,
		Completer: replies,
		Prompts:   prompts,
	}, *agentCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build agent")
	}

	logx.Info().
		Str("environment", env.String()).
		Bool("llm", replies.Configured()).
		Bool("graph", memory.Connected(ctx)).
		Bool("inventory", db != nil).
		Msg("agent ready")

	if db != nil {
		if err := runThroughCRM(ctx, crmx.NewBunRepository(db), agent, appCfg); err != nil {
			logx.Fatal().Err(err).Msg("crm demo failed")
		}
		return
	}
	runDirect(ctx, agent, appCfg)
}

func newMemory(ctx context.Context) (*memoryx.Service, func()) {
	memCfg := configx.MustNew[memoryx.Config]("MEMORY")
	neoCfg := configx.MustNew[neo4jx.Config]("NEO4J")

	client, err := neo4jx.New(ctx, *neoCfg)
	if err != nil {
		if !errors.Is(err, neo4jx.ErrNotConfigured) {
			logx.Warn().Err(err).Str("dependency", "neo4j").Msg("graph memory unavailable")
		}
		return memoryx.NewService(nil, memoryx.WithConfig(*memCfg)), func() {}
	}
	closeGraph := func() { _ = client.Close(context.Background()) }

	store, err := memoryx.NewNeo4jStore(client)
	if err != nil {
		logx.Warn().Err(err).Str("dependency", "neo4j").Msg("graph memory unavailable")
		return memoryx.NewService(nil, memoryx.WithConfig(*memCfg)), closeGraph
	}

	svc := memoryx.NewService(store, memoryx.WithConfig(*memCfg))
	svc.EnsureSchema(ctx)
	return svc, closeGraph
}

func newInventory(ctx context.Context) (*inventoryx.Service, *bun.DB) {
	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	db, err := pgCfg.New(ctx)
	if err != nil {
		if !errors.Is(err, postgresx.ErrNotConfigured) {
			logx.Warn().Err(err).Str("dependency", "postgres").Msg("inventory unavailable, sample listings will be shown")
		}
		return inventoryx.NewService(nil), nil
	}
	return inventoryx.NewService(inventoryx.NewPostgresStore(db)), db
}

func newSnapshotStore(ctx context.Context) []statex.CacheOption {
	redisCfg := configx.MustNew[redisx.Config]("REDIS")
	client, err := redisCfg.New(ctx)
	if err != nil {
		if !errors.Is(err, redisx.ErrNotConfigured) {
			logx.Warn().Err(err).Str("dependency", "redis").Msg("state snapshots disabled")
		}
		return nil
	}
	store, err := statex.NewRedisStore(client)
	if err != nil {
		logx.Warn().Err(err).Str("dependency", "redis").Msg("state snapshots disabled")
		return nil
	}
	return []statex.CacheOption{statex.WithSnapshotStore(store)}
}

func runDirect(ctx context.Context, agent *qualifier.Agent, appCfg *AppConfig) {
	customer := contractx.Customer{
		ID:        appCfg.DemoCustomerID,
		CompanyID: appCfg.DemoCompanyID,
		Name:      appCfg.DemoName,
	}
	conversationID := fmt.Sprintf("demo-%d", time.Now().Unix())

	var history []contractx.HistoryMessage
	for _, text := range demoScript {
		history = append(history, contractx.HistoryMessage{
			Content:    text,
			SenderType: contractx.SenderCustomer,
			CreatedAt:  time.Now(),
		})
		resp := agent.ProcessMessage(ctx, customer, conversationID, text, history)
		history = append(history, contractx.HistoryMessage{
			Content:    resp.Message,
			SenderType: contractx.SenderAgent,
			CreatedAt:  time.Now(),
		})
		printTurn(text, resp)
	}
}

func runThroughCRM(ctx context.Context, repo crmx.Repository, agent crmx.Agent, appCfg *AppConfig) error {
	crmCfg := configx.MustNew[crmx.Config]("CRM")
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")

	var opts []crmx.Option
	if qstashCfg.Token != "" {
		client := qstashx.MustNew(*qstashCfg)
		opts = append(opts, crmx.WithVerifier(client))
		scheduler, err := crmx.NewQStashScheduler(client, crmCfg.FollowUpDestination, crmCfg.FollowUpDelay)
		if err != nil {
			logx.Warn().Err(err).Str("dependency", "qstash").Msg("follow-ups disabled")
		} else {
			opts = append(opts, crmx.WithScheduler(scheduler))
		}
	}

	svc, err := crmx.NewService(repo, agent, *crmCfg, opts...)
	if err != nil {
		return err
	}

	conversationID := fmt.Sprintf("demo-%d", time.Now().Unix())
	for _, text := range demoScript {
		out, err := svc.HandleInbound(ctx, crmx.Inbound{
			CustomerID:     appCfg.DemoCustomerID,
			ConversationID: conversationID,
			Text:           text,
		})
		if err != nil {
			return err
		}
		printTurn(text, out.Response)
		if out.LeadID != "" {
			fmt.Printf("   lead: %s follow-up: %s\n", out.LeadID, out.FollowUpID)
		}
	}
	return nil
}

func printTurn(text string, resp contractx.AIResponse) {
	fmt.Printf("> %s\n", text)
	fmt.Printf("< %s\n", resp.Message)
	fmt.Printf("   stage=%s actions=%v confidence=%.2f lead=%t follow_up=%t\n\n",
		resp.NextStage, resp.Actions, resp.Confidence, resp.ShouldCreateLead, resp.ShouldScheduleFollowUp)
}
