package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Analysis  AnalysisConfig
	Gemini    GeminiConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// RedisConfig selects the queue/store backend. An empty Addr keeps the
// service fully in-process: in-memory job store and goroutine dispatch.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis backend is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AnalysisConfig struct {
	SequenceLength  int
	Threshold       float64
	OutputFrameRate int

	// Optional model weights. When a path is unset or the file is missing,
	// the corresponding fallback strategy is selected at construction time.
	EmbeddingModelPath  string
	ClassifierModelPath string

	UploadDir string
	OutputDir string

	// DemoPattern scores chunks from a fixed reference sequence instead of
	// the feature heuristics. Off by default; classifier mode ignores it.
	DemoPattern bool

	// Seed pins the jitter source for reproducible runs. 0 means time-based.
	Seed int64
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// UploadTimeout bounds the wait for remote video processing, in seconds.
	// Past it the report falls back to the text-only path.
	UploadTimeout int
}

type RateLimitConfig struct {
	AnalyzePerHour int
	UploadPerHour  int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GEMINI_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("analysis.sequence_length", "ANALYSIS_SEQUENCE_LENGTH")
	_ = viper.BindEnv("analysis.threshold", "ANALYSIS_THRESHOLD")
	_ = viper.BindEnv("analysis.output_frame_rate", "ANALYSIS_OUTPUT_FRAME_RATE")
	_ = viper.BindEnv("analysis.embedding_model_path", "EMBEDDING_MODEL_PATH")
	_ = viper.BindEnv("analysis.classifier_model_path", "CLASSIFIER_MODEL_PATH")
	_ = viper.BindEnv("analysis.upload_dir", "UPLOAD_DIR")
	_ = viper.BindEnv("analysis.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("analysis.demo_pattern", "ANALYSIS_DEMO_PATTERN")
	_ = viper.BindEnv("analysis.seed", "ANALYSIS_SEED")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")
	_ = viper.BindEnv("gemini.upload_timeout", "GEMINI_UPLOAD_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("analysis.sequence_length", 40)
	viper.SetDefault("analysis.threshold", 0.8)
	viper.SetDefault("analysis.output_frame_rate", 30)
	viper.SetDefault("analysis.classifier_model_path", "models/fight_classifier.onnx")
	viper.SetDefault("analysis.embedding_model_path", "models/resnet_embedding.onnx")
	viper.SetDefault("analysis.upload_dir", "static/uploads")
	viper.SetDefault("analysis.output_dir", "static/processed_videos")
	viper.SetDefault("analysis.demo_pattern", false)
	viper.SetDefault("analysis.seed", 0)
	viper.SetDefault("ratelimit.analyze_per_hour", 20)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.model", "gemini-1.5-pro")
	viper.SetDefault("gemini.upload_timeout", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Analysis: AnalysisConfig{
			SequenceLength:      viper.GetInt("analysis.sequence_length"),
			Threshold:           viper.GetFloat64("analysis.threshold"),
			OutputFrameRate:     viper.GetInt("analysis.output_frame_rate"),
			EmbeddingModelPath:  viper.GetString("analysis.embedding_model_path"),
			ClassifierModelPath: viper.GetString("analysis.classifier_model_path"),
			UploadDir:           viper.GetString("analysis.upload_dir"),
			OutputDir:           viper.GetString("analysis.output_dir"),
			DemoPattern:         viper.GetBool("analysis.demo_pattern"),
			Seed:                viper.GetInt64("analysis.seed"),
		},
		Gemini: GeminiConfig{
			APIKey:        viper.GetString("gemini.api_key"),
			BaseURL:       viper.GetString("gemini.base_url"),
			Model:         viper.GetString("gemini.model"),
			UploadTimeout: viper.GetInt("gemini.upload_timeout"),
		},
		RateLimit: RateLimitConfig{
			AnalyzePerHour: viper.GetInt("ratelimit.analyze_per_hour"),
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
		},
	}

	return cfg, nil
}
