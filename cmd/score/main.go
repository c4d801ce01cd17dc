package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"restaurant-sentiment/internal/cfg"
	"restaurant-sentiment/internal/client"
	"restaurant-sentiment/internal/ingest"
	"restaurant-sentiment/internal/report"
	"restaurant-sentiment/internal/sentiment"
	"restaurant-sentiment/internal/storage"
	"restaurant-sentiment/internal/textclean"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		reviewsPath = flag.String("reviews", "", "Review source: CSV/JSONL file, or BoltDB directory")
		dataFormat  = flag.String("format", "auto", "Review format: auto, csv, json, boltdb")
		importDir   = flag.String("import", "", "Also store the loaded reviews in the BoltDB directory")
		remote      = flag.String("remote", "", "Score through a running server at this URL instead of locally")
		vocabPath   = flag.String("vocabulary", "", "Vocabulary artifact (overrides config)")
		modelPath   = flag.String("model", "", "Model artifact (overrides config)")
		outputPath  = flag.String("output", "", "Output directory for reports")
		limit       = flag.Int("limit", 0, "Reviews per business (0 uses the configured review limit, -1 all)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *vocabPath != "" {
		config.VocabularyPath = *vocabPath
	}
	if *modelPath != "" {
		config.ModelPath = *modelPath
	}
	if *reviewsPath == "" {
		*reviewsPath = config.DataPath
	}
	if *reviewsPath == "" {
		log.Fatal().Msg("No review source: pass -reviews or set DATA_PATH")
	}

	perBusiness := config.ReviewLimit
	switch {
	case *limit < 0:
		perBusiness = 0
	case *limit > 0:
		perBusiness = *limit
	}

	loader := ingest.NewLoader()
	if err := loadReviews(loader, *dataFormat, *reviewsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to load reviews")
	}
	log.Info().Int("reviews", loader.Count()).Int("skipped", loader.Skipped()).Msg("Reviews loaded")

	if *importDir != "" {
		if err := importReviews(*importDir, loader); err != nil {
			log.Fatal().Err(err).Msg("Failed to import reviews")
		}
	}

	predictor, err := newPredictor(config, *remote)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize predictor")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	results, err := report.Score(ctx, predictor, loader.Reviews(), perBusiness)
	if err != nil {
		log.Fatal().Err(err).Msg("Scoring failed")
	}

	reporter := report.NewReporter(results, *outputPath)
	if *outputPath != "" {
		if err := reporter.GenerateReport(); err != nil {
			log.Error().Err(err).Msg("Failed to generate reports")
		}
	}
	reporter.PrintSummary(os.Stdout)

	log.Info().Str("output", *outputPath).Msg("Scoring completed successfully")
}

func newPredictor(config cfg.Settings, remote string) (report.Predictor, error) {
	if remote != "" {
		c := client.New(strings.TrimRight(remote, "/"), config.WriteTimeout, client.WithRetries(3, 500*time.Millisecond))
		health, err := c.Health(context.Background())
		if err != nil {
			return nil, fmt.Errorf("remote server unreachable: %w", err)
		}
		if !health.Healthy {
			return nil, fmt.Errorf("remote server not ready (state %s)", health.State)
		}
		return c, nil
	}

	stages, err := config.StageIDs()
	if err != nil {
		return nil, err
	}
	engine := sentiment.New(
		sentiment.WithWorkers(config.Workers),
		sentiment.WithPipeline(textclean.New(textclean.WithStages(stages...))),
	)
	if err := engine.Load(config.VocabularyPath, config.ModelPath); err != nil {
		return nil, err
	}
	return engine, nil
}

func loadReviews(loader *ingest.Loader, format, path string) error {
	switch format {
	case "csv":
		return loader.LoadFromCSV(path)
	case "json", "jsonl":
		return loader.LoadFromJSONL(path)
	case "boltdb":
		return loadFromBoltDB(loader, path)
	case "auto":
		return autoLoadReviews(loader, path)
	default:
		return fmt.Errorf("unknown review format %q", format)
	}
}

// autoLoadReviews picks the reader from the path: a directory is a BoltDB store,
// otherwise the file extension decides.
func autoLoadReviews(loader *ingest.Loader, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		return loadFromBoltDB(loader, path)
	}

	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch {
	case strings.HasSuffix(name, ".csv"):
		return loader.LoadFromCSV(path)
	case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".jsonl"):
		return loader.LoadFromJSONL(path)
	default:
		return fmt.Errorf("cannot determine file format for: %s", path)
	}
}

func loadFromBoltDB(loader *ingest.Loader, dir string) error {
	store, err := storage.New(dir)
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}
	defer store.Close()
	return loader.LoadFromBoltDB(store, nil, 0)
}

func importReviews(dir string, loader *ingest.Loader) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	store, err := storage.New(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.StoreReviews(loader.Reviews()); err != nil {
		return err
	}
	log.Info().Str("dir", dir).Int("reviews", loader.Count()).Msg("Reviews imported")
	return nil
}
