package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-sentiment/internal/cfg"
	"restaurant-sentiment/internal/metrics"
	"restaurant-sentiment/internal/ml"
	"restaurant-sentiment/internal/sentiment"
	"restaurant-sentiment/internal/server"
	"restaurant-sentiment/internal/storage"
	"restaurant-sentiment/internal/textclean"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const loadRetryInterval = 30 * time.Second

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mw *metrics.MetricsWrapper
	if c.MetricsEnabled {
		mw = metrics.NewWrapper(metrics.New())
	}

	engine, err := initializeEngine(c, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("engine initialization failed")
	}

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	srv := server.New(engine, server.Config{
		Port:         c.ListenPort,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		ReviewLimit:  c.ReviewLimit,
	}, serverOptions(store, mw)...)

	go loadArtifacts(ctx, engine, c)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("sentiment server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	log.Info().Msg("server stopped")
}

func initializeEngine(c cfg.Settings, mw *metrics.MetricsWrapper) (*sentiment.Engine, error) {
	stages, err := c.StageIDs()
	if err != nil {
		return nil, err
	}

	pipelineOpts := []textclean.Option{textclean.WithStages(stages...)}
	engineOpts := []sentiment.Option{sentiment.WithWorkers(c.Workers)}
	if mw != nil {
		pipelineOpts = append(pipelineOpts, textclean.WithObserver(mw))
		engineOpts = append(engineOpts, sentiment.WithMetrics(mw))
	}
	engineOpts = append(engineOpts, sentiment.WithPipeline(textclean.New(pipelineOpts...)))

	return sentiment.New(engineOpts...), nil
}

// initializeStorage opens the review store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, business endpoint disabled")
		return nil
	}
	return store
}

func serverOptions(store *storage.Store, mw *metrics.MetricsWrapper) []server.Option {
	var opts []server.Option
	if store != nil {
		opts = append(opts, server.WithStore(store))
	}
	if mw != nil {
		opts = append(opts, server.WithObserver(mw), server.WithMetricsHandler(promhttp.Handler()))
	}
	return opts
}

// artifactPaths prefers the active version of the model registry when one is configured.
func artifactPaths(c cfg.Settings) (string, string, error) {
	if c.ModelsDir == "" {
		return c.VocabularyPath, c.ModelPath, nil
	}
	mm, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		return "", "", err
	}
	if v := mm.GetCurrentVersion(); v != nil {
		log.Info().Str("version", v.Version).Float64("accuracy", v.Metrics.Accuracy).Msg("using registered model version")
	}
	return mm.ActivePaths()
}

// loadArtifacts keeps retrying until the engine is Ready; /health reports 503 meanwhile.
func loadArtifacts(ctx context.Context, engine *sentiment.Engine, c cfg.Settings) {
	for {
		vocabPath, modelPath, err := artifactPaths(c)
		if err == nil {
			err = engine.Load(vocabPath, modelPath)
		}
		if err == nil || errors.Is(err, sentiment.ErrAlreadyLoaded) {
			return
		}

		log.Error().Err(err).Dur("retry_in", loadRetryInterval).Msg("model load failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(loadRetryInterval):
		}
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()
}
