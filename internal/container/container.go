package container

import (
	"context"
	"fmt"

	"finresearch/adapters/filestore"
	"finresearch/adapters/llm"
	"finresearch/adapters/market"
	"finresearch/adapters/postgres"
	"finresearch/adapters/retrieval"
	"finresearch/adapters/websearch"
	"finresearch/ai"
	"finresearch/internal"
	"finresearch/internal/api"
	"finresearch/internal/config"
	"finresearch/internal/research"
	"finresearch/internal/usage"
	"finresearch/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Reference data
	Catalog *config.Catalog
	Prompts *ai.PromptManager

	// Collaborators
	Generator ports.TextGenerator
	Retriever ports.Retriever
	Web       ports.WebSearcher
	Market    ports.MarketData

	// Repositories (data access layer)
	Runs      ports.RunRepository
	UsageRepo ports.LLMUsageRepository
	Usage     *usage.Service

	// Research components
	SSEHub *api.SSEHub
	Engine *research.Engine

	logger *internal.Logger
}

// New builds the collaborators from configuration. The file archive is used
// until InitWithDatabase switches to PostgreSQL.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		logger: internal.DefaultLogger.With("Container"),
	}

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	c.Catalog = catalog
	c.Prompts = ai.NewPromptManager(cfg.PromptsDir)

	if err := c.initGenerator(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize text generator: %w", err)
	}
	c.initRetriever()
	c.initWeb()
	c.Market = market.NewYahoo(cfg.Market.BaseURL)

	c.Runs = filestore.NewRunStore(cfg.Storage.RunsDir)
	return c, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DB = db
	c.Runs = postgres.NewRunRepository(db)
	c.UsageRepo = postgres.NewLLMUsageRepository(db)
	c.Usage = usage.NewService(c.UsageRepo)
	c.Generator = usage.NewTrackingGenerator(c.Generator, c.Usage)

	c.logger.Info("database archive and usage tracking enabled")
	return nil
}

// BuildEngine wires the research engine. Call after InitWithDatabase when a
// database is used so usage tracking wraps the generator.
func (c *Container) BuildEngine(extra ...research.EventSink) (*research.Engine, error) {
	if c.SSEHub == nil {
		c.SSEHub = api.NewSSEHub()
	}
	sinks := research.MultiSink{api.NewSSEEventSink(c.SSEHub)}
	sinks = append(sinks, extra...)

	engine, err := research.NewEngine(research.Dependencies{
		Generator: c.Generator,
		Retriever: c.Retriever,
		Web:       c.Web,
		Market:    c.Market,
		Catalog:   c.Catalog,
		Prompts:   c.Prompts,
		Events:    sinks,
		TopK:      c.Config.Retrieval.TopK,
		WebOptions: research.WebOptions{
			MaxResults: c.Config.Web.MaxResults,
			Topic:      c.Config.Web.Topic,
			Depth:      c.Config.Web.Depth,
		},
		MarketSourceName: c.Config.Market.SourceName,
	})
	if err != nil {
		return nil, err
	}
	c.Engine = engine
	return engine, nil
}

// Close releases background resources and flushes pending usage records
func (c *Container) Close() error {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.Usage != nil {
		c.Usage.Wait()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *Container) initGenerator(ctx context.Context) error {
	cfg := c.Config.LLM

	var client llm.Completer
	switch cfg.Provider {
	case "gemini":
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
		client = g
	default:
		oc, err := llm.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Provider, cfg.Timeout, cfg.MaxRetries)
		if err != nil {
			return err
		}
		client = oc
	}

	c.Generator = llm.NewProfileRouter(client,
		llm.ProfileSettings{Model: cfg.Fast.Model, Temperature: cfg.Fast.Temperature, MaxTokens: cfg.Fast.MaxTokens},
		llm.ProfileSettings{Model: cfg.Smart.Model, Temperature: cfg.Smart.Temperature, MaxTokens: cfg.Smart.MaxTokens},
	)
	c.logger.Info("text generation via %s (fast=%s, smart=%s)", cfg.Provider, cfg.Fast.Model, cfg.Smart.Model)
	return nil
}

func (c *Container) initRetriever() {
	cfg := c.Config.Retrieval

	embedder, err := retrieval.NewCohereEmbedder(cfg.CohereAPIKey, cfg.CohereBaseURL, cfg.EmbedModel, cfg.CacheSize)
	if err != nil {
		c.logger.Warn("document retrieval disabled: %v", err)
		c.Retriever = unavailableRetriever{reason: err.Error()}
		return
	}
	index, err := retrieval.NewPineconeIndex(cfg.PineconeAPIKey, cfg.PineconeIndexHost, cfg.Namespace)
	if err != nil {
		c.logger.Warn("document retrieval disabled: %v", err)
		c.Retriever = unavailableRetriever{reason: err.Error()}
		return
	}
	c.Retriever = retrieval.NewStore(embedder, index)
}

func (c *Container) initWeb() {
	if c.Config.Web.TavilyAPIKey == "" {
		c.logger.Warn("web search disabled: TAVILY_API_KEY not set")
		c.Web = unavailableWeb{reason: "TAVILY_API_KEY not set"}
		return
	}
	c.Web = websearch.NewTavily(c.Config.Web.TavilyAPIKey, c.Config.Web.BaseURL)
}
