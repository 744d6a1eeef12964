// Package main runs the chat relay bot: a reminder scheduler that posts
// registered messages when they come due, and a feed poller that relays new
// announcement links to a channel exactly once.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"relaybot/feed"
	"relaybot/register"
	"relaybot/relay"
	"relaybot/remind"
	"relaybot/scraper"
	"relaybot/store"
	"relaybot/telegram"
)

type config struct {
	databasePath string
	botToken     string
	feedChannel  string

	newsBaseURL  string
	newsPath     string
	forumBaseURL string
	updatePath   string
	bugBaseURL   string
	bugPath      string

	remindInterval time.Duration
	feedInterval   time.Duration
	guarantee      relay.DeliveryGuarantee
	sendRate       float64
	port           string
}

func loadConfig() (*config, error) {
	cfg := &config{
		databasePath: envOr("DATABASE_PATH", "./data/relaybot.db"),
		botToken:     os.Getenv("BOT_TOKEN"),
		feedChannel:  os.Getenv("FEED_CHANNEL"),

		newsBaseURL:  os.Getenv("NEWS_BASE_URL"),
		newsPath:     envOr("NEWS_PATH", "/news/"),
		forumBaseURL: os.Getenv("FORUM_BASE_URL"),
		updatePath:   envOr("FORUM_UPDATE_PATH", "/c/update-information"),
		bugBaseURL:   os.Getenv("BUG_BASE_URL"),
		bugPath:      envOr("BUG_PATH", "/c/bug-report"),

		port: envOr("PORT", "8080"),
	}

	if cfg.botToken == "" {
		return nil, errors.New("BOT_TOKEN environment variable required")
	}

	var err error
	if cfg.remindInterval, err = durationEnv("REMIND_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.feedInterval, err = durationEnv("FEED_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.guarantee, err = relay.ParseDeliveryGuarantee(os.Getenv("DELIVERY_GUARANTEE")); err != nil {
		return nil, err
	}
	if cfg.sendRate, err = floatEnv("SEND_RATE", 1); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sources builds the configured feed sources. A source whose base URL is not
// configured is left out.
func (c *config) sources() []feed.Source {
	var out []feed.Source
	if c.forumBaseURL != "" {
		out = append(out, feed.UpdateSource(c.forumBaseURL+c.updatePath, c.forumBaseURL))
	}
	if c.bugBaseURL != "" {
		out = append(out, feed.BugSource(c.bugBaseURL+c.bugPath, c.bugBaseURL))
	}
	if c.newsBaseURL != "" {
		out = append(out, feed.NewsSource(c.newsBaseURL+c.newsPath, c.newsBaseURL+c.newsPath))
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// every renders a fixed interval as a cron spec.
func every(d time.Duration) string {
	return "@every " + d.String()
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.databasePath, logger.With("comp", "store"))
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	// Connecting verifies the token against the platform, which can fail
	// transiently right after a deploy.
	var bot *telegram.Bot
	err = retry.Do(
		func() error {
			var connErr error
			bot, connErr = telegram.Connect(telegram.Config{
				Token:    cfg.botToken,
				SendRate: cfg.sendRate,
			}, logger.With("comp", "telegram"))
			return connErr
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("retrying bot connect", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		logger.Error("failed to connect bot", "error", err)
		os.Exit(1)
	}

	registrar := register.New(st, logger.With("comp", "register"))
	scheduler := remind.New(st, bot, cfg.guarantee, logger.With("comp", "remind"))
	fetcher := scraper.New(&http.Client{Timeout: 30 * time.Second}, logger.With("comp", "scraper"))
	poller := feed.New(fetcher, st, bot, cfg.feedChannel, logger.With("comp", "feed"))
	sources := cfg.sources()

	logger.Info("relay bot starting",
		"delivery_guarantee", cfg.guarantee.String(),
		"remind_interval", cfg.remindInterval.String(),
		"feed_interval", cfg.feedInterval.String(),
		"feed_sources", len(sources))

	registerBotHandlers(bot, registrar, logger.With("comp", "commands"))
	go bot.Start()
	defer bot.Stop()

	timers := cron.New()
	if _, err := timers.AddFunc(every(cfg.remindInterval), func() {
		if err := scheduler.CheckDue(ctx); err != nil {
			logger.Warn("reminder scan failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule reminder scan", "error", err)
		os.Exit(1)
	}
	for _, src := range sources {
		if _, err := timers.AddFunc(every(cfg.feedInterval), func() {
			if err := poller.CheckSource(ctx, src); err != nil {
				logger.Warn("feed check failed", "source", src.Name, "error", err)
			}
		}); err != nil {
			logger.Error("failed to schedule feed check", "source", src.Name, "error", err)
			os.Exit(1)
		}
	}
	timers.Start()
	defer timers.Stop()

	a := &app{
		logger: logger.With("comp", "http"),
		check: func(ctx context.Context) {
			for _, src := range sources {
				if err := poller.CheckSource(ctx, src); err != nil {
					logger.Warn("feed check failed", "source", src.Name, "error", err)
				}
			}
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/pollz", a.handlePoll)

	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", "port", cfg.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
