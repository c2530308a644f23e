package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"stockrelay/internal/adapters/checker"
	"stockrelay/internal/adapters/transport"
	"stockrelay/internal/core/domain"
	"stockrelay/internal/core/domain/bot"
	"stockrelay/internal/core/port"
	"stockrelay/internal/core/service"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	log.Info().Msg("starting stockrelay...")

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	setDefaults()

	log.Info().Msg("reading config file...")
	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not read config file")
	}

	logFile, err := setupLogging(viper.GetString("bot.log_level"), viper.GetString("bot.log_file"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not open log file")
	}
	defer logFile.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	t, err := newTransport(viper.GetString("transport.kind"))
	if err != nil {
		log.Panic().Err(err).Msg("failed initializing transport")
	}

	inventoryChecker, err := checker.NewCommandChecker(viper.GetStringSlice("inventory.command"))
	if err != nil {
		log.Panic().Err(err).Msg("failed initializing inventory checker")
	}

	delay, err := time.ParseDuration(viper.GetString("inventory.delay"))
	if err != nil {
		log.Panic().Err(err).Msg("invalid delay for inventory checks in config")
	}

	coordinator := service.NewCoordinator(t, service.NewScheduler(), viper.GetInt("relay.queue_size"))

	coordinator.AddBot(bot.NewInventory(
		viper.GetString("inventory.name"),
		inventoryChecker,
		coordinator,
		delay,
		viper.GetStringSlice("inventory.subscribers"),
		viper.GetString("inventory.alert_template"),
	))

	if viper.GetBool("debug.enabled") {
		coordinator.AddBot(bot.NewDebug(viper.GetString("debug.name"), coordinator))
	}

	err = coordinator.Start(ctx)
	if err != nil {
		log.Error().Err(err).Msg("relay stopped with error")
		return
	}

	log.Info().Msg("bye")
}

func setDefaults() {
	viper.SetDefault("bot.log_level", "info")
	viper.SetDefault("bot.log_file", "stockrelay.log")
	viper.SetDefault("transport.kind", "xmpp")
	viper.SetDefault("xmpp.resource", "stockrelay")
	viper.SetDefault("xmpp.direct_tls", false)
	viper.SetDefault("xmpp.connect_attempts", transport.DefaultConnectAttempts)
	viper.SetDefault("inventory.name", "ikea")
	viper.SetDefault("inventory.delay", "60s")
	viper.SetDefault("inventory.command", checker.DefaultCommand)
	viper.SetDefault("inventory.alert_template", bot.DefaultAlertTemplate)
	viper.SetDefault("relay.queue_size", service.DefaultQueueSize)
	viper.SetDefault("debug.enabled", false)
	viper.SetDefault("debug.name", "debug")
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// setupLogging writes to the console and, if path is set, to a log file truncated on every start.
func setupLogging(level, path string) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if path == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()

	return f, nil
}

func newTransport(kind string) (port.Transport, error) {
	switch kind {
	case "xmpp":
		return transport.NewXMPP(transport.XMPPConfig{
			Host:            viper.GetString("xmpp.host"),
			JID:             viper.GetString("xmpp.jid"),
			Password:        viper.GetString("xmpp.password"),
			Resource:        viper.GetString("xmpp.resource"),
			DirectTLS:       viper.GetBool("xmpp.direct_tls"),
			ConnectAttempts: viper.GetUint("xmpp.connect_attempts"),
		}), nil
	case "telegram":
		return transport.NewTelegram(viper.GetString("telegram.bot_token")), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTransport, kind)
	}
}
