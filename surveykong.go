// Package surveykong is the public API for embedding the SurveyKong server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := surveykong.New(ctx,
//	    surveykong.WithVersion(version),
//	    surveykong.WithLogger(logger),
//	    surveykong.WithCompletionClient(myProvider),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: surveykong (root)
// imports internal/*, but internal/* never imports the root. Public types
// (CompletionClient and its request/response structs) are standalone with no
// internal imports; the adapter bridging them lives here because this is the
// only package that sees both sides of the boundary.
package surveykong

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/surveykong/surveykong/internal/agent"
	"github.com/surveykong/surveykong/internal/auth"
	"github.com/surveykong/surveykong/internal/config"
	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/mcp"
	"github.com/surveykong/surveykong/internal/orchestrator"
	"github.com/surveykong/surveykong/internal/ratelimit"
	"github.com/surveykong/surveykong/internal/server"
	"github.com/surveykong/surveykong/internal/storage"
	"github.com/surveykong/surveykong/internal/telemetry"
	"github.com/surveykong/surveykong/migrations"
)

// App is the SurveyKong server lifecycle. Construct with New(), run with
// Run(). App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the SurveyKong server. It connects to the database, runs
// migrations, and wires all subsystems. It does NOT start any goroutines or
// accept HTTP connections — call Run().
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("surveykong: load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.client != nil {
		// A custom client makes the provider setting irrelevant, including
		// its key requirements.
		cfg.LLMProvider = config.ProviderFake
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("surveykong: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	insecure := !strings.HasPrefix(cfg.OTELEndpoint, "https://")
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, insecure)
	if err != nil {
		return nil, fmt.Errorf("surveykong: telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("surveykong: storage: %w", err)
	}

	fail := func(err error) (*App, error) {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, err
	}

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fail(fmt.Errorf("surveykong: migrations: %w", err))
	}
	for _, extra := range o.migrations {
		if err := db.RunMigrations(ctx, extra); err != nil {
			return fail(fmt.Errorf("surveykong: extra migrations: %w", err))
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fail(fmt.Errorf("surveykong: auth: %w", err))
	}

	var apiKeyHash string
	if cfg.APIKey != "" {
		apiKeyHash, err = auth.HashAPIKey(cfg.APIKey)
		if err != nil {
			return fail(fmt.Errorf("surveykong: hash api key: %w", err))
		}
	} else {
		logger.Warn("authentication disabled (no SURVEYKONG_API_KEY)")
	}

	var client llm.Client
	if o.client != nil {
		client = completionAdapter{c: o.client}
		logger.Info("llm provider: custom", "model", client.Model())
	} else {
		client, err = newLLMClient(ctx, cfg, logger)
		if err != nil {
			return fail(err)
		}
	}

	// The agents are process-wide singletons so their circuit breakers see
	// traffic from every request.
	agents := newAgents(cfg, client, logger)
	orch := orchestrator.New(db, agents, logger)

	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	mcpSrv := mcp.New(db, orch, agents, logger, version)

	srv := server.New(server.ServerConfig{
		Store:        db,
		Orch:         orch,
		Agents:       agents,
		JWTManager:   jwtMgr,
		APIKeyHash:   apiKeyHash,
		Limiter:      limiter,
		MCP:          mcpserver.NewStreamableHTTPServer(mcpSrv.MCPServer()),
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
		MaxBodyBytes: cfg.MaxRequestBodyBytes,
		CORSOrigin:   cfg.CORSOrigin,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("surveykong starting",
		"version", a.version, "port", a.cfg.Port, "provider", a.cfg.LLMProvider)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	_ = a.limiter.Close()
	a.db.Close()
	_ = a.otelShutdown(context.Background())

	a.logger.Info("surveykong stopped")
	return err
}

// Handler returns the fully wrapped HTTP handler, for embedding the API
// into an existing server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// newLLMClient selects the completion provider from configuration.
func newLLMClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		logger.Info("llm provider: openai", "model", cfg.OpenAIModel)
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case config.ProviderGemini:
		logger.Info("llm provider: gemini", "model", cfg.GeminiModel)
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.ProviderFake:
		logger.Warn("llm provider: fake (scripted responses, development only)")
		return llm.NewFake("{}"), nil
	default:
		// Unreachable: config.Validate rejects unknown providers.
		return nil, fmt.Errorf("surveykong: unknown llm provider %q", cfg.LLMProvider)
	}
}

func newAgents(cfg config.Config, client llm.Client, logger *slog.Logger) orchestrator.Agents {
	base := agent.Config{
		Client:              client,
		Logger:              logger,
		MaxRetries:          cfg.MaxRetries,
		RetryDelay:          cfg.RetryDelay,
		RateLimit:           cfg.LLMRateInterval,
		BreakerThreshold:    cfg.BreakerThreshold,
		BreakerResetTimeout: cfg.BreakerResetTimeout,
	}
	named := func(name string) agent.Config {
		c := base
		c.Name = name
		return c
	}
	return orchestrator.Agents{
		Spec:     agent.NewSpecAgent(named("spec")),
		Survey:   agent.NewSurveyAgent(named("survey")),
		Cohort:   agent.NewCohortAgent(named("cohort")),
		Outbound: agent.NewOutboundAgent(named("outbound")),
		Analysis: agent.NewAnalysisAgent(named("analysis")),
	}
}
