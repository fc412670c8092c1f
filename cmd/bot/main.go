package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coinpulse/internal/bot"
	"coinpulse/internal/cache"
	"coinpulse/internal/coingecko"
	"coinpulse/internal/config"
	"coinpulse/internal/market"
	"coinpulse/internal/models"
	"coinpulse/internal/narrative"
	"coinpulse/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	demo := models.DefaultDemoQuotes()
	if err := models.LoadDemoQuotesFromJSON(cfg.CoinGecko.DemoQuotesFile, demo); err != nil {
		logger.Error("failed to load demo quotes", "file", cfg.CoinGecko.DemoQuotesFile, "error", err)
		os.Exit(1)
	}

	quotes := market.NewAggregator(
		coingecko.NewClientWithURL(cfg.CoinGecko.BaseURL, cfg.CoinGecko.Timeout),
		cache.NewFreshness[models.Quote](models.QuoteTTL),
		cache.NewFallback[models.Quote](),
		demo,
		logger.With("component", "market"),
	)

	narratives := narrative.NewFetcher(narrative.Config{
		APIKey:  cfg.Narrative.APIKey,
		BaseURL: cfg.Narrative.BaseURL,
		Model:   cfg.Narrative.Model,
		Timeout: cfg.Narrative.Timeout,
	}, cache.NewFreshness[models.Narrative](models.NarrativeTTL), logger.With("component", "narrative"))
	if !narratives.Enabled() {
		logger.Warn("OPENAI_API_KEY not set, /analysis will report a missing credential")
	}

	if cfg.Telegram.Token == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is not set")
		os.Exit(1)
	}
	b, err := bot.New(cfg.Telegram.Token, cfg.Telegram.Debug, quotes, narratives, cfg.Refresh.Interval, logger.With("component", "bot"))
	if err != nil {
		logger.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("coinpulse started", "refresh_interval", cfg.Refresh.Interval)
	if err := b.Run(ctx); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("coinpulse stopped")
}
