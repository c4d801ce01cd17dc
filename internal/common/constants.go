package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvVocabularyPath = "VOCABULARY_PATH"
	EnvModelPath      = "MODEL_PATH"
	EnvModelsDir      = "MODELS_DIR"
	EnvDataPath       = "DATA_PATH"
	EnvListenPort     = "LISTEN_PORT"
	EnvMetricsEnabled = "METRICS_ENABLED"
	EnvWorkers        = "WORKERS"
	EnvReviewLimit    = "REVIEW_LIMIT"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvStages         = "PIPELINE_STAGES"
)

// Configuration defaults
const (
	DefaultVocabularyPath = "models/vocabulary.json"
	DefaultModelPath      = "models/model.json"
	DefaultListenPort     = 8080
	DefaultWorkers        = 4
	DefaultReviewLimit    = 10 // reviews scored per business page
	DefaultLogLevel       = "info"
	DefaultMetricsEnabled = true
)

// Validation constants
const (
	MinListenPort  = 1024
	MaxListenPort  = 65535
	MaxWorkers     = 256
	MaxReviewLimit = 1000
	MaxBatchSize   = 10000 // texts per /predict request
)

// Storage bucket names
const (
	BucketReviews     = "reviews"
	BucketPredictions = "predictions"
	ReviewsDBFile     = "reviews.db"
)
