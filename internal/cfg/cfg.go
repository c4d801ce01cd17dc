package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"restaurant-sentiment/internal/common"
	"restaurant-sentiment/internal/textclean"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	VocabularyPath string
	ModelPath      string
	ModelsDir      string // versioned model registry; overrides the two paths above when set
	DataPath       string // bbolt directory, optional
	ListenPort     int
	MetricsEnabled bool
	Workers        int
	ReviewLimit    int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       string
	Stages         []string
}

type ConfigFile struct {
	Model struct {
		VocabularyPath string `yaml:"vocabularyPath"`
		ModelPath      string `yaml:"modelPath"`
		ModelsDir      string `yaml:"modelsDir"`
	} `yaml:"model"`

	Server struct {
		ListenPort     int    `yaml:"listenPort"`
		MetricsEnabled *bool  `yaml:"metricsEnabled"`
		Workers        int    `yaml:"workers"`
		ReadTimeout    string `yaml:"readTimeout"`
		WriteTimeout   string `yaml:"writeTimeout"`
	} `yaml:"server"`

	Pipeline struct {
		Stages []string `yaml:"stages"`
	} `yaml:"pipeline"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		ReviewLimit int    `yaml:"reviewLimit"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads an optional .env file, then CONFIG_FILE if set, else the environment.
// Environment variables always win over the YAML file.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to read .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	metricsEnabled := common.DefaultMetricsEnabled
	if config.Server.MetricsEnabled != nil {
		metricsEnabled = *config.Server.MetricsEnabled
	}

	settings := Settings{
		VocabularyPath: getEnvOrDefault(common.EnvVocabularyPath, orDefault(config.Model.VocabularyPath, common.DefaultVocabularyPath)),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.ModelPath, common.DefaultModelPath)),
		ModelsDir:      getEnvOrDefault(common.EnvModelsDir, config.Model.ModelsDir),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ListenPort:     getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		MetricsEnabled: getBoolOrDefault(common.EnvMetricsEnabled, metricsEnabled),
		Workers:        getIntFromEnvOrConfig(common.EnvWorkers, config.Server.Workers, common.DefaultWorkers),
		ReviewLimit:    getIntFromEnvOrConfig(common.EnvReviewLimit, config.System.ReviewLimit, common.DefaultReviewLimit),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, parseDurationOr(config.Server.ReadTimeout, 10*time.Second)),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, parseDurationOr(config.Server.WriteTimeout, 30*time.Second)),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		Stages:         splitOrDefault(os.Getenv(common.EnvStages), config.Pipeline.Stages),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		VocabularyPath: getEnvOrDefault(common.EnvVocabularyPath, common.DefaultVocabularyPath),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelsDir:      os.Getenv(common.EnvModelsDir), // optional
		DataPath:       os.Getenv(common.EnvDataPath),  // optional
		ListenPort:     getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsEnabled: getBoolOrDefault(common.EnvMetricsEnabled, common.DefaultMetricsEnabled),
		Workers:        getIntOrDefault(common.EnvWorkers, common.DefaultWorkers),
		ReviewLimit:    getIntOrDefault(common.EnvReviewLimit, common.DefaultReviewLimit),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, 10*time.Second),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, 30*time.Second),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		Stages:         splitOrDefault(os.Getenv(common.EnvStages), nil),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// StageIDs resolves Stages, falling back to the default order when none are configured.
func (s *Settings) StageIDs() ([]textclean.StageID, error) {
	if len(s.Stages) == 0 {
		return append([]textclean.StageID(nil), textclean.DefaultStages...), nil
	}
	return textclean.ParseStages(s.Stages)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateSettings checks ranges and that every referenced name resolves.
func validateSettings(settings *Settings) error {
	if settings.ModelsDir == "" && (settings.VocabularyPath == "" || settings.ModelPath == "") {
		return fmt.Errorf("vocabulary and model paths are required when no models directory is set")
	}

	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d",
			common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}
	if settings.Workers <= 0 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}
	if settings.ReviewLimit <= 0 || settings.ReviewLimit > common.MaxReviewLimit {
		return fmt.Errorf("review limit must be between 1 and %d, got %d", common.MaxReviewLimit, settings.ReviewLimit)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	if _, err := settings.StageIDs(); err != nil {
		return fmt.Errorf("invalid pipeline stages: %w", err)
	}

	return nil
}
