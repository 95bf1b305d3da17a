package openai

// Config contains OpenAI model client configuration.
// Fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//   - MaxRetries: Maps to option.WithMaxRetries(). Defaults to 0 because the
//     task service applies its own retry policy.
//
// RequestsPerSecond and Burst configure the client-side limiter; zero
// disables it.
type Config struct {
	APIKey            string  `env:"OPENAI_API_KEY"`
	BaseURL           string  `env:"OPENAI_BASE_URL"             envDefault:"https://api.openai.com/v1"`
	Timeout           int     `env:"OPENAI_TIMEOUT"              envDefault:"60"`
	MaxRetries        int     `env:"OPENAI_MAX_RETRIES"          envDefault:"0"`
	RequestsPerSecond float64 `env:"OPENAI_REQUESTS_PER_SECOND" envDefault:"10"`
	Burst             int     `env:"OPENAI_BURST"                envDefault:"20"`
}
