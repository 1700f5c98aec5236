package cli

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/tool"
	"github.com/windward-labs/tripsmith/pkg/tool/calendar"
	"github.com/windward-labs/tripsmith/pkg/tool/search"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	// Provider
	openaiAPIKey   string
	openaiBaseURL  string
	model          string
	embeddingModel string

	// Search
	tavilyAPIKey     string
	searchMaxResults int64

	// Storage
	redisAddr     string
	redisPassword string
	redisDB       int64
	historyLimit  int64

	// Agent
	maxToolIterations int64

	// Output
	calendarDir string
	logLevel    string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Override the OpenAI-compatible endpoint",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Chat completion model",
			Value:       "gpt-4.1",
			Sources:     cli.EnvVars("TRIPSMITH_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model for memory retrieval",
			Value:       "text-embedding-3-small",
			Sources:     cli.EnvVars("TRIPSMITH_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.StringFlag{
			Name:        "tavily-api-key",
			Usage:       "Tavily API key for web search",
			Sources:     cli.EnvVars("TAVILY_API_KEY"),
			Destination: &cfg.tavilyAPIKey,
		},
		&cli.IntFlag{
			Name:        "search-max-results",
			Usage:       "Maximum results requested per web search",
			Value:       5,
			Sources:     cli.EnvVars("TRIPSMITH_SEARCH_MAX_RESULTS"),
			Destination: &cfg.searchMaxResults,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for history and memory storage",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.IntFlag{
			Name:        "history-limit",
			Usage:       "Maximum chat messages kept per user",
			Value:       40,
			Sources:     cli.EnvVars("TRIPSMITH_HISTORY_LIMIT"),
			Destination: &cfg.historyLimit,
		},
		&cli.IntFlag{
			Name:        "max-tool-iterations",
			Usage:       "Maximum tool calls per turn",
			Value:       8,
			Sources:     cli.EnvVars("TRIPSMITH_MAX_TOOL_ITERATIONS"),
			Destination: &cfg.maxToolIterations,
		},
		&cli.StringFlag{
			Name:        "calendar-dir",
			Usage:       "Directory for generated calendar files",
			Value:       "calendars",
			Sources:     cli.EnvVars("TRIPSMITH_CALENDAR_DIR"),
			Destination: &cfg.calendarDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("TRIPSMITH_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// setupLogger installs the configured default logger
func (cfg *config) setupLogger() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newRedis creates a Redis client
func (cfg *config) newRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		Password: cfg.redisPassword,
		DB:       int(cfg.redisDB),
	})
}

// newLLM creates the chat provider client
func (cfg *config) newLLM() (adapter.ChatClient, error) {
	if cfg.openaiAPIKey == "" {
		return nil, goerr.New("openai-api-key is required")
	}

	opts := []adapter.OpenAIOption{
		adapter.WithModel(cfg.model),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	}
	if cfg.openaiBaseURL != "" {
		opts = append(opts, adapter.WithBaseURL(cfg.openaiBaseURL))
	}
	return adapter.NewOpenAI(cfg.openaiAPIKey, opts...), nil
}

// newSearch creates the web search client
func (cfg *config) newSearch() (adapter.SearchClient, error) {
	if cfg.tavilyAPIKey == "" {
		return nil, goerr.New("tavily-api-key is required")
	}
	return adapter.NewTavily(cfg.tavilyAPIKey, adapter.WithMaxResults(int(cfg.searchMaxResults))), nil
}

// newTools assembles the tool registry
func (cfg *config) newTools() (*tool.Registry, error) {
	searchClient, err := cfg.newSearch()
	if err != nil {
		return nil, err
	}

	return tool.New(
		search.New(searchClient),
		calendar.New(adapter.NewFileCalendarWriter(), cfg.calendarDir),
	), nil
}

// newContextRegistry wires the full per-user stack: one shared provider
// client and Redis connection, per-user orchestrators built lazily.
func (cfg *config) newContextRegistry() (*chat.ContextRegistry, error) {
	llm, err := cfg.newLLM()
	if err != nil {
		return nil, err
	}

	tools, err := cfg.newTools()
	if err != nil {
		return nil, err
	}

	client := cfg.newRedis()
	history := repository.NewRedisHistory(client, int(cfg.historyLimit))
	memories := repository.NewRedisMemory(client)

	return chat.NewContextRegistry(func(userID string) (*chat.UserContext, error) {
		gate := chat.NewMemoryGate(llm, memories, chat.WithRebuild(func() repository.MemoryStore {
			return repository.NewRedisMemory(cfg.newRedis())
		}))

		return &chat.UserContext{
			UserID:       userID,
			Orchestrator: chat.NewOrchestrator(chat.NewAgent(llm, tools, chat.WithMaxIterations(int(cfg.maxToolIterations))), gate, history),
			History:      history,
			Memories:     memories,
		}, nil
	}), nil
}
