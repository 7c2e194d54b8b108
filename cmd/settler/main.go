package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polysettle/config"
	"github.com/alejandrodnm/polysettle/internal/adapters/blob"
	"github.com/alejandrodnm/polysettle/internal/adapters/clock"
	"github.com/alejandrodnm/polysettle/internal/adapters/feed"
	"github.com/alejandrodnm/polysettle/internal/adapters/lock"
	"github.com/alejandrodnm/polysettle/internal/adapters/notify"
	"github.com/alejandrodnm/polysettle/internal/adapters/storage"
	"github.com/alejandrodnm/polysettle/internal/application/facilitator"
	"github.com/alejandrodnm/polysettle/internal/application/oracle"
	"github.com/alejandrodnm/polysettle/internal/application/settlement"
	"github.com/alejandrodnm/polysettle/internal/application/txn"
	"github.com/alejandrodnm/polysettle/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file (.yaml or .toml)")
	initialize := flag.Bool("init", false, "create the settlement, oracle and facilitator records if missing")
	report := flag.Bool("report", false, "print the market table")
	answer := flag.Bool("answer", false, "fetch answers for pending oracle questions from the feed")
	archive := flag.Bool("archive", false, "upload snapshots of settled markets to the archive bucket")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("polysettle starting",
		"config", *configPath,
		"driver", cfg.Storage.Driver,
		"init", *initialize,
		"report", *report,
		"answer", *answer,
		"archive", *archive,
	)

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.MaxConns)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(cfg.Report.Decimals)
	run := txn.NewRunner(store)
	run.SetNotifier(console)

	if cfg.Lock.RedisAddr != "" {
		locker, err := lock.NewRedisLocker(ctx, lock.Config{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "err", err, "addr", cfg.Lock.RedisAddr)
			os.Exit(1)
		}
		defer locker.Close()
		run.SetLocker(locker, cfg.LockTTL())
	}

	clk := clock.System{}
	engine := settlement.New(run, clk)
	registry := oracle.NewRegistry(run, clk)
	payments := facilitator.New(run, clk)

	if *initialize {
		if err := initRecords(ctx, cfg, engine, registry, payments); err != nil {
			slog.Error("init failed", "err", err)
			os.Exit(1)
		}
	}

	if *answer {
		if err := answerPending(ctx, cfg, registry); err != nil {
			slog.Error("answer run failed", "err", err)
			os.Exit(1)
		}
	}

	if *report {
		markets, err := engine.Markets(ctx)
		if err != nil {
			slog.Error("failed to list markets", "err", err)
			os.Exit(1)
		}
		console.PrintMarkets(markets)
	}

	if *archive {
		if err := archiveSettled(ctx, cfg, engine); err != nil {
			slog.Error("archive failed", "err", err)
			os.Exit(1)
		}
	}

	slog.Info("polysettle done")
}

// initRecords crea los tres records singleton. Los que ya existen se dejan como están.
func initRecords(ctx context.Context, cfg *config.Config, engine *settlement.Engine, registry *oracle.Registry, payments *facilitator.Service) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"settlement", func() error { return engine.Initialize(ctx, cfg.Settlement.Authority, cfg.Settlement.FeeBps) }},
		{"oracle", func() error {
			return registry.Initialize(ctx, cfg.Oracle.Authority, cfg.Oracle.Provider, cfg.Oracle.Fee)
		}},
		{"facilitator", func() error {
			return payments.Initialize(ctx, cfg.Facilitator.Authority, cfg.Facilitator.FeeBps)
		}},
	}
	for _, s := range steps {
		err := s.fn()
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			slog.Info("record already initialized", "record", s.name)
		case err != nil:
			return err
		}
	}
	return nil
}

// answerPending recorre todas las preguntas del oráculo y deja que el provider
// responda las que sigan pendientes.
func answerPending(ctx context.Context, cfg *config.Config, registry *oracle.Registry) error {
	if cfg.Oracle.FeedBase == "" {
		return errors.New("oracle.feed_base is not configured")
	}
	st, err := registry.State(ctx)
	if err != nil {
		return err
	}
	ids := make([]uint64, 0, st.QuestionCounter)
	for id := uint64(1); id <= st.QuestionCounter; id++ {
		ids = append(ids, id)
	}

	client := feed.NewClient(cfg.Oracle.FeedBase, cfg.Oracle.FeedRate).WithRetryWait(cfg.RetryWait())
	provider := oracle.NewProvider(registry, client, cfg.Oracle.Provider, cfg.Oracle.FetchWorkers)
	provider.SetBatchSize(cfg.Oracle.BatchLimit)
	applied, err := provider.AnswerPending(ctx, ids)
	if err != nil {
		return err
	}
	slog.Info("pending questions answered", "applied", applied, "questions", len(ids))
	return nil
}

func archiveSettled(ctx context.Context, cfg *config.Config, engine *settlement.Engine) error {
	if cfg.Archive.Bucket == "" {
		return errors.New("archive.bucket is not configured")
	}
	archiver, err := blob.New(ctx, blob.Config{
		Bucket:         cfg.Archive.Bucket,
		Region:         cfg.Archive.Region,
		Endpoint:       cfg.Archive.Endpoint,
		AccessKey:      cfg.Archive.AccessKey,
		SecretKey:      cfg.Archive.SecretKey,
		Prefix:         cfg.Archive.Prefix,
		ForcePathStyle: cfg.Archive.ForcePathStyle,
	})
	if err != nil {
		return err
	}
	_, err = engine.ArchiveSettled(ctx, archiver)
	return err
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
