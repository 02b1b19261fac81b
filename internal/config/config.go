package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a secret from a file path specified by an env var with
// _FILE suffix. If FOO is already set directly, the file is skipped.
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
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Worker  WorkerConfig
	LLM     LLMConfig
	Search  SearchConfig

	RateLimit RateLimitConfig
}

type RateLimitConfig struct {
	CreatePerHour int
	QueryPerMin   int
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type StorageConfig struct {
	Root     string // project directories, one per job
	TasksDir string // task queue directory
}

type WorkerConfig struct {
	Embedded     bool
	PollInterval int // seconds
	Concurrency  int // bound for intra-stage fan-out
}

type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    int // seconds
}

type SearchConfig struct {
	BaseURL    string
	Region     string
	Timeout    int // seconds
	MaxResults int
}

func Load() (*Config, error) {
	readSecret("LLM_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("storage.root", "STORAGE_DIR")
	_ = viper.BindEnv("storage.tasks_dir", "TASKS_DIR")
	_ = viper.BindEnv("worker.embedded", "WORKER_EMBEDDED")
	_ = viper.BindEnv("worker.poll_interval", "WORKER_POLL_INTERVAL")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("llm.max_retries", "LLM_MAX_RETRIES")
	_ = viper.BindEnv("llm.timeout", "LLM_TIMEOUT")
	_ = viper.BindEnv("search.base_url", "SEARCH_BASE_URL")
	_ = viper.BindEnv("search.region", "SEARCH_REGION")
	_ = viper.BindEnv("search.timeout", "SEARCH_TIMEOUT")
	_ = viper.BindEnv("search.max_results", "SEARCH_MAX_RESULTS")
	_ = viper.BindEnv("ratelimit.create_per_hour", "RATELIMIT_CREATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.query_per_min", "RATELIMIT_QUERY_PER_MIN")

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("storage.root", "storage")
	viper.SetDefault("storage.tasks_dir", "tasks")
	viper.SetDefault("worker.embedded", true)
	viper.SetDefault("worker.poll_interval", 2)
	viper.SetDefault("worker.concurrency", 5)

	// LLM defaults (OpenAI-compatible endpoint)
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.timeout", 120)

	// Search defaults (SearXNG-compatible JSON API)
	viper.SetDefault("search.region", "wt-wt")
	viper.SetDefault("search.timeout", 30)
	viper.SetDefault("search.max_results", 10)

	viper.SetDefault("ratelimit.create_per_hour", 30)
	viper.SetDefault("ratelimit.query_per_min", 120)

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Storage: StorageConfig{
			Root:     viper.GetString("storage.root"),
			TasksDir: viper.GetString("storage.tasks_dir"),
		},
		Worker: WorkerConfig{
			Embedded:     viper.GetBool("worker.embedded"),
			PollInterval: viper.GetInt("worker.poll_interval"),
			Concurrency:  viper.GetInt("worker.concurrency"),
		},
		LLM: LLMConfig{
			APIKey:     viper.GetString("llm.api_key"),
			BaseURL:    viper.GetString("llm.base_url"),
			Model:      viper.GetString("llm.model"),
			MaxRetries: viper.GetInt("llm.max_retries"),
			Timeout:    viper.GetInt("llm.timeout"),
		},
		Search: SearchConfig{
			BaseURL:    viper.GetString("search.base_url"),
			Region:     viper.GetString("search.region"),
			Timeout:    viper.GetInt("search.timeout"),
			MaxResults: viper.GetInt("search.max_results"),
		},
		RateLimit: RateLimitConfig{
			CreatePerHour: viper.GetInt("ratelimit.create_per_hour"),
			QueryPerMin:   viper.GetInt("ratelimit.query_per_min"),
		},
	}

	return cfg, nil
}
