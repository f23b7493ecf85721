// Package main is the entry point for the courier-send CLI, which delivers a
// single email described in a YAML file through the configured courier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/courier/internal/config"
	"github.com/shineum/courier/internal/courier"
	"github.com/shineum/courier/internal/courier/graph"
	"github.com/shineum/courier/internal/courier/postmark"
	"github.com/shineum/courier/internal/courier/ses"
	"github.com/shineum/courier/internal/courier/sparkpost"
	"github.com/shineum/courier/internal/courier/stdout"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	messagePath := flag.String("message", "", "path to YAML message file")
	emlPath := flag.String("eml", "", "path to RFC 5322 message file, instead of -message")
	flag.Parse()

	if (*messagePath == "") == (*emlPath == "") {
		fmt.Fprintln(os.Stderr, "usage: courier-send [-config config.yaml] (-message message.yaml | -eml message.eml)")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	path, load := *messagePath, loadMessage
	if *emlPath != "" {
		path, load = *emlPath, loadEML
	}
	msg, err := load(path)
	if err != nil {
		slog.Error("failed to load message", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	c, err := selectCourier(ctx, cfg)
	if err != nil {
		slog.Error("failed to select courier", "error", err)
		os.Exit(1)
	}

	slog.Info("delivering email",
		"courier", c.Name(),
		"content", msg.Content.Kind(),
		"to", courier.JoinAddresses(msg.To),
		"attachments", len(msg.Attachments),
	)

	if err := c.Deliver(ctx, msg); err != nil {
		slog.Error("delivery failed",
			"courier", c.Name(),
			"kind", errorKind(err),
			"error", err,
		)
		os.Exit(1)
	}

	slog.Info("email delivered", "courier", c.Name())
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectCourier chooses the delivery backend based on configuration.
// If COURIER is set, it takes precedence. Otherwise the first configured
// provider wins (Postmark, SparkPost, SES, Graph), falling back to stdout.
func selectCourier(ctx context.Context, cfg *config.Config) (courier.Courier, error) {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	switch cfg.Courier {
	case "postmark":
		if !cfg.PostmarkConfigured() {
			return nil, errors.New("postmark courier selected but POSTMARK_SERVER_TOKEN is required")
		}
		return newPostmark(cfg, httpClient), nil

	case "sparkpost":
		if !cfg.SparkPostConfigured() {
			return nil, errors.New("sparkpost courier selected but SPARKPOST_API_KEY is required")
		}
		return newSparkPost(cfg, httpClient), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("ses courier selected but SES_REGION is required")
		}
		return newSES(ctx, cfg)

	case "graph", "msgraph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("graph courier selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, and GRAPH_CLIENT_SECRET are required")
		}
		return newGraph(cfg, httpClient), nil

	case "stdout":
		slog.Info("using stdout courier")
		return stdout.New(), nil

	case "":
		switch {
		case cfg.PostmarkConfigured():
			return newPostmark(cfg, httpClient), nil
		case cfg.SparkPostConfigured():
			return newSparkPost(cfg, httpClient), nil
		case cfg.SESConfigured():
			return newSES(ctx, cfg)
		case cfg.GraphConfigured():
			return newGraph(cfg, httpClient), nil
		}
		slog.Info("no courier configured, using stdout courier")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown courier %q", cfg.Courier)
	}
}

func newPostmark(cfg *config.Config, httpClient *http.Client) courier.Courier {
	slog.Info("using Postmark courier", "base_url", cfg.Postmark.BaseURL)
	return postmark.NewWithClient(postmark.NewHTTPClient(cfg.Postmark.ServerToken, cfg.Postmark.BaseURL, httpClient))
}

func newSparkPost(cfg *config.Config, httpClient *http.Client) courier.Courier {
	slog.Info("using SparkPost courier", "base_url", cfg.SparkPost.BaseURL)
	return sparkpost.NewWithClient(sparkpost.NewHTTPClient(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL, httpClient))
}

func newSES(ctx context.Context, cfg *config.Config) (courier.Courier, error) {
	slog.Info("using AWS SES courier", "region", cfg.SES.Region)
	c, err := ses.New(ctx, ses.Config{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES courier: %w", err)
	}
	return c, nil
}

func newGraph(cfg *config.Config, httpClient *http.Client) courier.Courier {
	slog.Info("using Microsoft Graph courier", "tenant_id", cfg.Graph.TenantID)
	return graph.New(graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		BaseURL:      cfg.Graph.BaseURL,
	}, httpClient)
}

// errorKind names the failure category of a delivery error for logging.
func errorKind(err error) string {
	switch {
	case errors.Is(err, courier.ErrUnsupportedContent):
		return "unsupported_content"
	case errors.Is(err, courier.ErrValidation):
		return "validation"
	case errors.Is(err, courier.ErrTransmission):
		return "transmission"
	default:
		return "unknown"
	}
}
