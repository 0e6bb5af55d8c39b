package config

import "time"

// Config holds examforge configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Chunking ChunkingCfg `mapstructure:"chunking" yaml:"chunking"`
}

// ProviderCfg configures the language model service used for text
// partitioning, structuring, and answer-key parsing.
type ProviderCfg struct {
	// APIKey supports ${ENV_VAR} syntax.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// BaseURL points at any OpenAI-compatible endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	// RateLimitWait is the mandatory delay in seconds inserted after every
	// service call. Fixed, not adaptive.
	RateLimitWait float64 `mapstructure:"rate_limit_wait" yaml:"rate_limit_wait"`
	// MaxRetries bounds attempts per unit of work (chunk, batch, page).
	MaxRetries     int `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ChunkingCfg configures how booklet text is fed to the service.
type ChunkingCfg struct {
	WindowSize    int `mapstructure:"window_size" yaml:"window_size"`
	WindowOverlap int `mapstructure:"window_overlap" yaml:"window_overlap"`
	BatchSize     int `mapstructure:"batch_size" yaml:"batch_size"`
	// MaxBatches limits structuring work per file; 0 means unlimited.
	MaxBatches int `mapstructure:"max_batches" yaml:"max_batches"`
}

// RateLimitDelay returns the fixed post-call delay as a duration.
func (p ProviderCfg) RateLimitDelay() time.Duration {
	return time.Duration(p.RateLimitWait * float64(time.Second))
}

// Timeout returns the per-request HTTP timeout.
func (p ProviderCfg) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			APIKey:         "${GOOGLE_API_KEY}",
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:          "gemini-2.0-flash",
			RateLimitWait:  4.0,
			MaxRetries:     3,
			TimeoutSeconds: 120,
		},
		Chunking: ChunkingCfg{
			WindowSize:    15000,
			WindowOverlap: 500,
			BatchSize:     5,
			MaxBatches:    0,
		},
	}
}
