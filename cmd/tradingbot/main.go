// Command tradingbot runs a single-instrument perpetual-futures signal
// engine end to end: tick feed, bar aggregation, trend or hybrid
// signal generation, position reconciliation, and order execution.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/bot"
	"binance-trading-bot/internal/csvlog"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/secrets"
	"binance-trading-bot/internal/statusapi"
	"binance-trading-bot/internal/tradehistory"
	"binance-trading-bot/internal/warmstate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tradingbot: load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Str("symbol", cfg.StrategyConfig.Symbol).Str("engine", cfg.StrategyConfig.Engine).Str("mode", cfg.StrategyConfig.Mode).Msg("tradingbot: starting")

	creds, err := loadCredentials(*cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tradingbot: load credentials")
	}

	client := exchange.NewClient(creds.APIKey, creds.SecretKey, cfg.BinanceConfig.TestNet, logger)

	var exec executor.Executor
	if cfg.StrategyConfig.Mode == "live" {
		exec = executor.NewLiveExecutor(cfg.StrategyConfig.Symbol, client, logger)
	} else {
		exec = executor.NewDryRunExecutor(logger)
	}

	warmStore, err := newWarmStore(*cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tradingbot: warm state store")
	}

	var history *tradehistory.Repository
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseConfig.Enabled {
		history, err = tradehistory.NewRepository(ctx, cfg.DatabaseConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("tradingbot: trade history disabled, continuing without it")
			history = nil
		} else {
			defer history.Close()
		}
	}

	deps := bot.Deps{
		Executor:     exec,
		WarmStore:    warmStore,
		CSVWriter:    csvlog.NewWriter(fmt.Sprintf("%s-trades.csv", strings.ToLower(cfg.StrategyConfig.Symbol))),
		TradeHistory: history,
	}

	orchestrator, err := bot.NewBot(*cfg, deps, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tradingbot: construct orchestrator")
	}

	tickFeed := exchange.NewTickFeed(aggTradeStreamURL(cfg.StrategyConfig.Symbol, cfg.BinanceConfig.TestNet), logger)
	poller := exchange.NewPoller(client, cfg.StrategyConfig.Symbol, exchange.DefaultPollInterval, logger)

	tickFeed.Start(ctx)
	go poller.Run(ctx)
	go logTickFeedErrors(tickFeed, logger)
	go orchestrator.Run(ctx, tickFeed.Ticks(), poller.Positions(), poller.Balances())
	go logBotEvents(orchestrator, logger)

	var server *statusapi.Server
	if cfg.ServerConfig.Enabled {
		server = statusapi.NewServer(cfg.ServerConfig, orchestrator, logger)
		go func() {
			if err := server.ListenAndServe(); err != nil {
				logger.Error().Err(err).Msg("tradingbot: status api stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("tradingbot: shutdown signal received")
	cancel()
	tickFeed.Stop()

	if server != nil {
		shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
		if err := server.Shutdown(shutdownTimeout); err != nil {
			logger.Warn().Err(err).Msg("tradingbot: status api shutdown")
		}
	}

	logger.Info().Msg("tradingbot: stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.JSONFormat {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func loadCredentials(cfg config.Config, logger zerolog.Logger) (secrets.Credentials, error) {
	if cfg.VaultConfig.Enabled {
		loader, err := secrets.NewLoader(cfg.VaultConfig, logger)
		if err != nil {
			return secrets.Credentials{}, fmt.Errorf("tradingbot: vault loader: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return loader.Load(ctx)
	}

	if cfg.BinanceConfig.APIKey != "" && cfg.BinanceConfig.SecretKey != "" {
		return secrets.Credentials{APIKey: cfg.BinanceConfig.APIKey, SecretKey: cfg.BinanceConfig.SecretKey}, nil
	}

	path := os.Getenv("LOCAL_CREDENTIALS_PATH")
	if path == "" {
		path = "credentials.enc"
	}
	passphrase := os.Getenv("LOCAL_CREDENTIALS_PASSPHRASE")
	return secrets.LoadLocal(path, passphrase)
}

func newWarmStore(cfg config.Config, logger zerolog.Logger) (warmstate.Store, error) {
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		key := fmt.Sprintf("%s:%s", cfg.RedisConfig.KeyPrefix, cfg.StrategyConfig.Symbol)
		return warmstate.NewRedisStore(client, key, logger), nil
	}

	path := fmt.Sprintf("%s-warmstate.json", strings.ToLower(cfg.StrategyConfig.Symbol))
	return warmstate.NewFileStore(path, logger), nil
}

func aggTradeStreamURL(symbol string, testnet bool) string {
	host := "wss://fstream.binance.com"
	if testnet {
		host = "wss://stream.binancefuture.com"
	}
	return fmt.Sprintf("%s/ws/%s@aggTrade", host, strings.ToLower(symbol))
}

func logTickFeedErrors(feed *exchange.TickFeed, logger zerolog.Logger) {
	for err := range feed.Errors() {
		logger.Warn().Err(err).Msg("tradingbot: tick feed error")
	}
}

func logBotEvents(b *bot.Bot, logger zerolog.Logger) {
	for ev := range b.Events() {
		logger.Info().Str("kind", string(ev.Kind)).Str("message", ev.Message).Msg("tradingbot: event")
	}
}
