package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CONVICTION_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CONVICTION_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

func TavilyAPIKey() string {
	return os.Getenv("TAVILY_API_KEY")
}

func AlphaVantageAPIKey() string {
	return os.Getenv("ALPHAVANTAGE_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// SearchProvider returns the configured web search provider.
// Defaults to "tavily" if not set.
// Valid values: tavily, mock
func SearchProvider() string {
	p := os.Getenv("SEARCH_PROVIDER")
	if p == "" {
		return "tavily"
	}
	return p
}

// FinDataProvider returns the configured financial data provider.
// Defaults to "alphavantage" if not set.
// Valid values: alphavantage, mock
func FinDataProvider() string {
	p := os.Getenv("FINDATA_PROVIDER")
	if p == "" {
		return "alphavantage"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// SearchAPIKey returns the API key for the configured search provider.
func SearchAPIKey() string {
	switch SearchProvider() {
	case "mock":
		return ""
	default:
		return TavilyAPIKey()
	}
}

// FinDataAPIKey returns the API key for the configured financial data provider.
func FinDataAPIKey() string {
	switch FinDataProvider() {
	case "mock":
		return ""
	default:
		return AlphaVantageAPIKey()
	}
}

// WorkerCount returns the research worker pool size.
// Defaults to 4 if not set.
func WorkerCount() int {
	n, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// MaxJobAttempts returns how many times a crashed or expired job
// is retried before it is marked failed. Defaults to 3.
func MaxJobAttempts() int {
	n, err := strconv.Atoi(os.Getenv("MAX_JOB_ATTEMPTS"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// JobLeaseTTL returns how long a worker may hold a job before the
// lease must be renewed. Defaults to 2m.
func JobLeaseTTL() time.Duration {
	d, err := time.ParseDuration(os.Getenv("JOB_LEASE_TTL"))
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// JobRateLimit returns the sustained job submissions per second.
// Defaults to 0.2 (one job every five seconds).
func JobRateLimit() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("JOB_RATE_LIMIT"), 64)
	if err != nil || rps <= 0 {
		return 0.2
	}
	return rps
}

// JobRateBurst returns the submission burst size. Defaults to 5.
func JobRateBurst() int {
	burst, err := strconv.Atoi(os.Getenv("JOB_RATE_BURST"))
	if err != nil || burst <= 0 {
		return 5
	}
	return burst
}

// EventThrottleWindow returns the debounce window for status_update
// progress events. Defaults to 500ms.
func EventThrottleWindow() time.Duration {
	d, err := time.ParseDuration(os.Getenv("EVENT_THROTTLE_WINDOW"))
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ReputationFile returns the path to an optional YAML file of
// domain reputation overrides for the credibility scorer.
func ReputationFile() string {
	return os.Getenv("REPUTATION_FILE")
}

// RateLimitRPS returns requests per second limit for the HTTP API.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
