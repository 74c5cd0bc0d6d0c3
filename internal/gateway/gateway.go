// Package gateway wires every domain and service component into a
// runnable process: load config, mount upstreams, build the provider
// adapters and chat orchestrator, and serve both HTTP ports. cmd/gateway
// is a thin cobra shell around New/Run.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mcpbridge/gateway/internal/adapter/inbound/api"
	rawhttp "github.com/mcpbridge/gateway/internal/adapter/inbound/http"
	auditstore "github.com/mcpbridge/gateway/internal/adapter/outbound/audit"
	"github.com/mcpbridge/gateway/internal/adapter/outbound/mcp"
	"github.com/mcpbridge/gateway/internal/adapter/outbound/mcpclient"
	"github.com/mcpbridge/gateway/internal/adapter/outbound/provider"
	"github.com/mcpbridge/gateway/internal/adapter/outbound/state"
	"github.com/mcpbridge/gateway/internal/config"
	"github.com/mcpbridge/gateway/internal/domain/audit"
	"github.com/mcpbridge/gateway/internal/domain/logbus"
	"github.com/mcpbridge/gateway/internal/domain/metrics"
	"github.com/mcpbridge/gateway/internal/domain/proxy"
	"github.com/mcpbridge/gateway/internal/domain/session"
	"github.com/mcpbridge/gateway/internal/domain/upstream"
	"github.com/mcpbridge/gateway/internal/service"
	"github.com/mcpbridge/gateway/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds how long Close waits for in-flight requests and
// upstream teardown once the process is asked to stop.
const shutdownGrace = 10 * time.Second

// Version is the gateway's release version, overridden at build time via
// -ldflags the same way the teacher's cmd package does.
var Version = "0.1.0-dev"

// Gateway holds every long-lived component BOOT wiring produced, so Run
// can start both listeners and Close can tear everything down in the
// reverse order it was built.
type Gateway struct {
	cfg        *config.GatewayConfig
	logger     *slog.Logger
	logs       *logbus.Buffer
	stateStore *state.FileStateStore
	state      *service.StateManager
	supervisor *service.Supervisor
	metrics    *metrics.Aggregator
	runner     *service.Runner
	policy     *service.ToolPolicy
	sessions   *session.Manager
	catalog    *service.CatalogBuilder
	orch       *service.Orchestrator
	management *service.ManagementDispatcher
	connReg    *mcp.ConnectionRegistry
	audit      auditBackend
	cfgWatcher *configWatcher
	tracerDown func(context.Context) error

	mainServer *api.Server
	rawServer  *rawhttp.Transport
}

// auditBackend is whichever concrete audit store BOOT-07 constructed
// (FileAuditStore or SQLiteAuditStore); both satisfy it. Left as a nil
// interface when the audit trail is disabled, so api.Deps.Audit's
// "== nil" check behaves correctly without the wrapped-nil-pointer trap a
// typed-nil field would hit.
type auditBackend interface {
	audit.AuditStore
	GetRecent(n int) []audit.AuditRecord
}

// New runs the boot sequence (BOOT-01 through BOOT-10) and returns a
// Gateway ready for Run. ctx bounds the initial upstream connect attempts;
// a connect failure for one upstream is logged and retried by the
// Supervisor's own backoff loop rather than failing New.
func New(ctx context.Context, cfg *config.GatewayConfig) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	// ===== BOOT-01: logging =====
	g.logs = logbus.NewBuffer(maxInt(cfg.LogBuffer.MainCapacity, cfg.LogBuffer.ProxyCapacity))
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)})
	mainHandler := logbus.NewHandler(g.logs, logbus.SourceOpenAPI, logbus.CategorySystem, base)
	g.logger = slog.New(mainHandler)

	if used := config.ConfigFileUsed(); used != "" {
		g.logger.Info("loaded config", "file", used)
	}

	tracerDown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	g.tracerDown = tracerDown

	// ===== BOOT-02: load upstream mcpServers document =====
	upstreams, err := config.LoadUpstreams(cfg.Server.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load upstreams: %w", err)
	}

	// ===== BOOT-03: state file =====
	statePath := cfg.Server.ConfigPath + "_state.json"
	g.stateStore = state.NewFileStateStore(statePath, g.logger)
	g.state = service.NewStateManager(g.stateStore)

	// ===== BOOT-04: metrics + runner =====
	g.metrics = metrics.New()
	g.runner = service.NewRunner(g.metrics)

	policy, err := service.NewToolPolicy()
	if err != nil {
		return nil, fmt.Errorf("build tool policy: %w", err)
	}
	g.policy = policy

	// ===== BOOT-05: upstream supervisor, mount the first generation =====
	g.supervisor = service.NewSupervisor(mcpclient.Dial, g.logger)
	if err := g.supervisor.Reload(ctx, derefConfigs(upstreams)); err != nil {
		g.logger.Warn("initial upstream mount reported errors", "error", err)
	}
	connected := 0
	for _, sess := range g.supervisor.Sessions() {
		if sess.Connected() {
			connected++
		}
	}
	g.logger.Info("upstream supervisor started", "configured", len(upstreams), "connected", connected)

	if watcher, err := watchConfigFile(cfg.Server.ConfigPath, g.supervisor, g.logger); err != nil {
		g.logger.Warn("config file watcher disabled", "error", err)
	} else {
		g.cfgWatcher = watcher
	}

	// ===== BOOT-06: raw MCP port connection registry + tool cache =====
	connReg, err := mcp.BuildConnectionRegistry(upstreams)
	if err != nil {
		return nil, fmt.Errorf("build connection registry: %w", err)
	}
	g.connReg = connReg

	toolCache := upstream.NewToolCache()
	syncToolCache(toolCache, g.supervisor)

	// ===== BOOT-07: audit trail (optional) =====
	if cfg.Audit.Enabled {
		switch cfg.Audit.Backend {
		case "sqlite":
			auditStore, err := auditstore.NewSQLiteAuditStore(cfg.Audit.SQLitePath, g.logger)
			if err != nil {
				return nil, fmt.Errorf("open audit store: %w", err)
			}
			g.audit = auditStore
		default:
			auditStore, err := auditstore.NewFileAuditStore(auditstore.AuditFileConfig{
				Dir:           cfg.Audit.Dir,
				RetentionDays: cfg.Audit.RetentionDays,
				MaxFileSizeMB: cfg.Audit.MaxFileSizeMB,
				CacheSize:     cfg.Audit.CacheSize,
			}, g.logger)
			if err != nil {
				return nil, fmt.Errorf("open audit store: %w", err)
			}
			g.audit = auditStore
		}
	}

	// ===== BOOT-08: chat surface =====
	g.sessions = session.NewManager(session.NewStore())
	g.catalog = service.NewCatalogBuilder(g.supervisor, g.state)

	adapters := buildProviderAdapters(cfg)
	toolTimeout, err := time.ParseDuration(cfg.Timeouts.Default)
	if err != nil {
		toolTimeout = 30 * time.Second
	}
	maxTimeout, err := time.ParseDuration(cfg.Timeouts.Max)
	if err != nil {
		maxTimeout = 300 * time.Second
	}
	g.orch = service.NewOrchestrator(adapters, g.supervisor, g.runner, toolTimeout)
	g.management = service.NewManagementDispatcher(g.supervisor, g.state)
	g.orch.SetManagement(g.management)

	// ===== BOOT-09: raw MCP port mounts =====
	aggregateRouter := proxy.NewUpstreamRouter(proxy.NewToolCacheAdapter(toolCache), connReg, g.logger)
	mounts := []rawhttp.Mount{
		{Path: cfg.Server.MCPBasePath, Chain: proxy.NewToolFilterInterceptor(aggregateRouter, g.state, "")},
	}
	for _, u := range upstreams {
		perUpstream := proxy.NewUpstreamRouter(proxy.NewToolCacheAdapter(toolCache), connReg, g.logger)
		mounts = append(mounts, rawhttp.Mount{
			Path:  cfg.Server.MCPBasePath + "/" + u.Name,
			Chain: proxy.NewToolFilterInterceptor(perUpstream, g.state, u.Name),
		})
	}
	g.rawServer = rawhttp.NewTransport(mounts,
		rawhttp.WithAddr(cfg.Server.MCPAddr),
		rawhttp.WithLogger(slog.New(logbus.NewHandler(g.logs, logbus.SourceMCP, logbus.CategoryTools, base))),
	)

	// ===== BOOT-10: main HTTP port =====
	g.mainServer = api.NewServer(cfg.Server.HTTPAddr, api.Deps{
		Supervisor:   g.supervisor,
		State:        g.state,
		Runner:       g.runner,
		Metrics:      g.metrics,
		Policy:       g.policy,
		Sessions:     g.sessions,
		Catalog:      g.catalog,
		Management:   g.management,
		Orchestrator: g.orch,
		Logs:         g.logs,
		Audit:        g.audit,
		Config:       cfg,
		Logger:       g.logger,
		Version:      Version,

		TimeoutDefault: toolTimeout,
		TimeoutMax:     maxTimeout,
	})

	return g, nil
}

// Run starts both HTTP ports and blocks until ctx is cancelled or either
// listener fails.
func (g *Gateway) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.mainServer.Start(egCtx) })
	eg.Go(func() error { return g.rawServer.Start(egCtx) })

	g.logger.Info("gateway started",
		"version", Version,
		"main_addr", g.cfg.Server.HTTPAddr,
		"mcp_addr", g.cfg.Server.MCPAddr,
		"read_only", g.cfg.Server.ReadOnly,
	)

	runErr := eg.Wait()

	closeDone := make(chan error, 1)
	go func() { closeDone <- g.Close() }()

	select {
	case closeErr := <-closeDone:
		if runErr != nil {
			return runErr
		}
		return closeErr
	case <-time.After(shutdownGrace):
		g.logger.Warn("shutdown grace window exceeded, exiting anyway", "grace", shutdownGrace)
		return runErr
	}
}

// Close tears down both listeners and the raw port's upstream
// connections, in reverse dependency order.
func (g *Gateway) Close() error {
	var errs []error
	if g.cfgWatcher != nil {
		if err := g.cfgWatcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.mainServer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := g.rawServer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := g.connReg.Close(); err != nil {
		errs = append(errs, err)
	}
	if g.audit != nil {
		if err := g.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.supervisor.Close(); err != nil {
		errs = append(errs, err)
	}
	if g.tracerDown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := g.tracerDown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if len(errs) > 0 {
		return fmt.Errorf("gateway shutdown errors: %v", errs)
	}
	return nil
}

func derefConfigs(in []*upstream.Config) []upstream.Config {
	out := make([]upstream.Config, len(in))
	for i, c := range in {
		out[i] = *c
	}
	return out
}

// syncToolCache copies the Supervisor's currently-discovered tools into
// the raw MCP port's independent ToolCache. The two ports dial the same
// upstreams separately (spec.md §4.6: the raw port forwards bytes
// verbatim, it does not share the typed Supervisor's connection). The
// cache is filled once at boot from what the Supervisor discovered; later
// reloads do not refresh it.
func syncToolCache(cache *upstream.ToolCache, sup *service.Supervisor) {
	for _, sess := range sup.Sessions() {
		cache.SetToolsForUpstream(sess.Name(), sess.Tools())
	}
}

func buildProviderAdapters(cfg *config.GatewayConfig) map[provider.Kind]provider.Adapter {
	adapters := make(map[provider.Kind]provider.Adapter)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client := httpClientFor(cfg.Providers.OpenAI)
		adapters[provider.KindOpenAI] = provider.NewOpenAIAdapter(provider.KindOpenAI, key, cfg.Providers.OpenAI.BaseURL, client)
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		client := httpClientFor(cfg.Providers.OpenRouter)
		adapters[provider.KindOpenRouter] = provider.NewOpenAIAdapter(provider.KindOpenRouter, key, cfg.Providers.OpenRouter.BaseURL, client)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		client := httpClientFor(cfg.Providers.Anthropic)
		adapters[provider.KindAnthropic] = provider.NewAnthropicAdapter(provider.KindAnthropic, key, cfg.Providers.Anthropic.BaseURL, true, client)
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		client := httpClientFor(cfg.Providers.Google)
		adapters[provider.KindGoogle] = provider.NewGoogleAdapter(key, cfg.Providers.Google.BaseURL, client)
	}
	if key := os.Getenv("MINIMAX_API_KEY"); key != "" {
		client := httpClientFor(cfg.Providers.MiniMax)
		adapters[provider.KindMiniMax] = provider.NewMiniMaxAdapter(key, cfg.Providers.MiniMax.BaseURL, client)
	}

	return adapters
}

func httpClientFor(pc config.ProviderConfig) *http.Client {
	timeout, err := time.ParseDuration(pc.Timeout)
	if err != nil {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
