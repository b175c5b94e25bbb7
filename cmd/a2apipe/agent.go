package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jllopis/a2apipe/pkg/a2a/jsonrpc"
	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/config"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
	"github.com/jllopis/a2apipe/pkg/llm/openai"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// AgentCmd serves one role agent.
type AgentCmd struct {
	Agent      string        `required:"" enum:"reader,analyst,visualizer" help:"Agent to launch (reader, analyst, visualizer)."`
	Host       string        `help:"Bind host for the server."`
	Port       int           `help:"Port to listen on."`
	PublicHost string        `name:"public-host" help:"Host clients use to reach the agent (used in the card URL)."`
	RPCPath    string        `name:"rpc-path" help:"Path of the JSON-RPC endpoint."`
	LLMModel   string        `name:"llm-model" help:"Default model of the agent."`
	LLMTimeout time.Duration `name:"llm-timeout" help:"Bound on each model call (overrides llm.timeout)."`
}

// settings merges the flags over the role's configured values.
func (c *AgentCmd) settings(role agents.Role, cfg config.AgentConfig) config.AgentConfig {
	out := cfg
	if c.Host != "" {
		out.Host = c.Host
	}
	if c.Port != 0 {
		out.Port = c.Port
	}
	if c.PublicHost != "" {
		out.PublicHost = c.PublicHost
	}
	if c.RPCPath != "" {
		out.RPCPath = c.RPCPath
	}
	if c.LLMModel != "" {
		out.Model = c.LLMModel
	}
	if out.Port == 0 {
		out.Port = role.DefaultPort()
	}
	if out.PublicHost == "" {
		out.PublicHost = "localhost"
	}
	if out.Model == "" {
		out.Model = role.DefaultModel()
	}
	return out
}

func (c *AgentCmd) Run(g *Globals) error {
	role, err := agents.ParseRole(c.Agent)
	if err != nil {
		return errors.New(errors.CodeBadRequest, err.Error(), nil)
	}
	settings := c.settings(role, g.Config.Agent(role.String()))
	logger := g.Logger.With(slog.String("agent", role.String()))
	timeout := g.Config.LLM.Timeout
	if c.LLMTimeout > 0 {
		timeout = c.LLMTimeout
	}

	provider, err := newProvider(g.Config.LLM, settings.Model)
	if err != nil {
		return err
	}

	metricsHandler, shutdownTelemetry, err := initTelemetry(serviceName+"-"+role.String(), g.Config.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	handler, err := agents.DefaultRegistry().Handler(role, agents.Deps{
		Provider: provider,
		Model:    settings.Model,
		Timeout:  timeout,
		Logger:   g.Logger,
	})
	if err != nil {
		return err
	}

	baseURL := "http://" + net.JoinHostPort(settings.PublicHost, strconv.Itoa(settings.Port))
	card := role.Card(baseURL, settings.RPCPath)
	rpc := jsonrpc.New(handler,
		jsonrpc.WithName(card.Name),
		jsonrpc.WithLogger(g.Logger),
		jsonrpc.WithMetrics(metrics),
	)
	mux := jsonrpc.NewAgentMux(rpc, jsonrpc.MuxConfig{
		RPCPath: settings.RPCPath,
		Card:    card,
		Metrics: metricsHandler,
	})

	addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	logger.Info("agent listening",
		slog.String("addr", addr),
		slog.String("card_url", card.URL),
		slog.String("model", settings.Model),
		slog.Duration("llm_timeout", timeout),
	)
	return serveHTTP(g.Ctx, addr, mux, logger)
}

func newProvider(cfg config.LLMConfig, model string) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...), nil
	default:
		return nil, errors.New(errors.CodeBadRequest, fmt.Sprintf("unsupported llm provider %q", cfg.Provider), nil)
	}
}

// initTelemetry installs the configured exporter. The returned handler is
// non-nil only for the prometheus exporter.
func initTelemetry(name string, cfg config.TelemetryConfig) (http.Handler, telemetry.ShutdownFunc, error) {
	tcfg := telemetry.Config{
		Exporter:     cfg.Exporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	}
	var handler http.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Exporter), telemetry.ExporterPrometheus) {
		tcfg.Registry = prometheus.NewRegistry()
		handler = telemetry.MetricsHandler(tcfg.Registry)
	}
	shutdown, err := telemetry.InitWithConfig(name, version(), tcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}
	return handler, shutdown, nil
}

// serveHTTP serves until ctx is done, then drains in-flight requests.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.New(errors.CodeInternal, fmt.Sprintf("serve %s", addr), err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
