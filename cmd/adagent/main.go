// Adagent is an LLM-backed advertising campaign agent.
//
// It serves a chat API over the demo campaign portfolio: the model
// plans with a closed set of advertising tools, every numeric claim is
// gated on tool evidence, and campaign changes fan out to the
// configured notification channels.
//
// Usage:
//
//	adagent [-config path]    Start the API server
//	adagent -init             Write an example config.yaml and exit
//	adagent -version          Print version and build information
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
	"time"

	"github.com/signal42/campaign-agent/examples"
	"github.com/signal42/campaign-agent/internal/agent"
	"github.com/signal42/campaign-agent/internal/api"
	"github.com/signal42/campaign-agent/internal/buildinfo"
	"github.com/signal42/campaign-agent/internal/campaign"
	"github.com/signal42/campaign-agent/internal/config"
	"github.com/signal42/campaign-agent/internal/conversation"
	"github.com/signal42/campaign-agent/internal/dataset"
	"github.com/signal42/campaign-agent/internal/events"
	"github.com/signal42/campaign-agent/internal/llm"
	"github.com/signal42/campaign-agent/internal/notify"
	"github.com/signal42/campaign-agent/internal/tools"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// writeExampleConfig writes the embedded example config, refusing to
// clobber an existing file.
func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, examples.ConfigYAML, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %s; set ANTHROPIC_API_KEY and run adagent\n", path)
	return nil
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	initConfig := flag.Bool("init", false, "write an example config.yaml and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return nil
	}
	if *initConfig {
		return writeExampleConfig("config.yaml")
	}

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)
	logger.Info("starting", "build", buildinfo.String(), "config", path)

	if cfg.Anthropic.APIKey == "" {
		return errors.New("anthropic.api_key is required (set ANTHROPIC_API_KEY and reference it in config)")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.New()

	store := campaign.NewStore()
	if err := dataset.Load(cfg.Dataset.Path, store, logger); err != nil {
		return err
	}

	// Notification channels: empty settings disable a channel, the
	// rest still run.
	var channels []notify.Channel
	if cfg.Notifications.Slack.WebhookURL != "" {
		channels = append(channels, notify.NewSlackChannel(cfg.Notifications.Slack.WebhookURL, cfg.Notifications.Slack.ChannelName))
	}
	if cfg.Notifications.Email.Recipient != "" {
		channels = append(channels, notify.NewEmailDraftChannel(cfg.Notifications.Email.From, cfg.Notifications.Email.Recipient, cfg.Notifications.Email.DraftsDir))
	}
	var mqttChannel *notify.MQTTChannel
	if cfg.Notifications.MQTT.Broker != "" {
		mqttChannel = notify.NewMQTTChannel(cfg.Notifications.MQTT)
		if err := mqttChannel.Connect(ctx); err != nil {
			logger.Warn("mqtt channel unavailable", "error", err)
		} else {
			channels = append(channels, mqttChannel)
		}
	}

	notifier := notify.NewService(channels, bus, logger, cfg.DashboardURL, 0)
	notifier.Start(ctx)
	defer notifier.Stop()

	registry := tools.NewRegistry(store, notifier, bus, logger)

	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Agent.Model, cfg.Agent.MaxTokens, logger)
	orchestrator := agent.New(client, registry, store, bus, logger, agent.Config{
		SystemPrompt: agent.SystemPrompt(cfg.Agent.Model),
		MaxTurns:     cfg.Agent.MaxTurns,
	})

	convs, err := conversation.NewStore(cfg.Conversations.DBPath, cfg.Conversations.MaxTurns)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer convs.Close()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, orchestrator, convs, bus, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if mqttChannel != nil {
		if err := mqttChannel.Close(shutdownCtx); err != nil {
			logger.Warn("mqtt disconnect", "error", err)
		}
	}
	return nil
}
