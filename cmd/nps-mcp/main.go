// Command nps-mcp runs the Netwrix Privilege Secure MCP tool server over the
// stdio transport. Configuration comes from the environment; nothing is ever
// written to stdout except protocol messages.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adamlsneed/nps-mcp-server/auth"
	"github.com/adamlsneed/nps-mcp-server/mcpserver"
	"github.com/adamlsneed/nps-mcp-server/nps"
	"github.com/adamlsneed/nps-mcp-server/observe"
	"github.com/adamlsneed/nps-mcp-server/resilience"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nps-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg := configFromEnv()
	if cfg.BaseURL == "" {
		return fmt.Errorf("NPS_URL is required (e.g. https://nps.example.com)")
	}

	observer, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "nps-mcp-server",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   os.Getenv("NPS_TRACE_EXPORTER") != "",
			Exporter:  os.Getenv("NPS_TRACE_EXPORTER"),
			SamplePct: 1.0,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  os.Getenv("NPS_METRICS_EXPORTER") != "",
			Exporter: os.Getenv("NPS_METRICS_EXPORTER"),
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   envOr("NPS_LOG_LEVEL", "info"),
		},
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observer.Shutdown(shutdownCtx)
	}()

	logger := observer.Logger()
	metrics, err := observe.NewAuthMetrics(observer.Meter())
	if err != nil {
		return fmt.Errorf("setting up metrics: %w", err)
	}

	requester := resilience.NewRequester(resilience.RequesterConfig{
		OnRetry: func(attempt int, delay time.Duration) {
			metrics.RecordRetry(ctx, attempt)
			logger.Warn(ctx, "retrying request after 500",
				observe.F("attempt", attempt),
				observe.F("delay", delay.String()),
			)
		},
	})

	dispatcher, err := auth.NewDispatcher(cfg, auth.DispatcherConfig{
		Requester: requester,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "authentication strategy selected",
		observe.F("strategy", string(dispatcher.Strategy())),
		observe.F("base_url", cfg.BaseURL),
	)

	tokens := auth.NewTokenSource(dispatcher, requester, auth.TokenSourceConfig{
		Logger:  logger,
		Tracer:  observer.Tracer(),
		Metrics: metrics,
	})

	client := nps.NewClient(tokens, nps.ClientConfig{
		BaseURL:   cfg.BaseURL,
		Requester: requester,
		Logger:    logger,
	})

	srv := mcpserver.New(tokens, client, mcpserver.Config{
		Version: version,
		Logger:  logger,
		Metrics: metrics,
	})
	return srv.ServeStdio()
}

// configFromEnv maps the NPS_* environment variables onto the auth config.
func configFromEnv() auth.Config {
	return auth.Config{
		BaseURL:   strings.TrimRight(os.Getenv("NPS_URL"), "/"),
		Username:  os.Getenv("NPS_USER_NAME"),
		Password:  os.Getenv("NPS_USER_PASSWORD"),
		MFACode:   os.Getenv("NPS_MFA_CODE"),
		APIKey:    os.Getenv("NPS_API_KEY"),
		Token:     os.Getenv("NPS_TOKEN"),
		MFAPrompt: strings.EqualFold(os.Getenv("NPS_MFA_PROMPT"), "true"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
