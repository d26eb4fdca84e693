package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// apiKeyEnv overrides transcription.api_key so secrets stay out of config
// files checked into version control.
const apiKeyEnv = "NOVA_TRANSCRIPTION_API_KEY"

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	RateLimits    RateLimitConfig     `yaml:"rate_limits"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Wake          WakeConfig          `yaml:"wake"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// RateLimitConfig contains per-endpoint request limits (requests per minute,
// per client IP)
type RateLimitConfig struct {
	Listen    int `yaml:"listen"`
	Recognise int `yaml:"recognise"`
	Process   int `yaml:"process"`
	Health    int `yaml:"health"`
}

// AudioConfig contains default decode parameters for raw PCM payloads that
// arrive without their own format description
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// VADConfig contains voice activity gate configuration
type VADConfig struct {
	Threshold float64 `yaml:"threshold"` // normalized RMS, 0..1
}

// WakeConfig contains wake phrase matching configuration
type WakeConfig struct {
	Phrase              string  `yaml:"phrase"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// TranscriptionConfig contains transcription engine API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	WarmOnStartup bool   `yaml:"warm_on_startup"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. The transcription API key
// may be supplied (or overridden) via NOVA_TRANSCRIPTION_API_KEY.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv(apiKeyEnv); key != "" {
		config.Transcription.APIKey = key
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in zero-valued optional fields
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}

	if c.RateLimits.Listen == 0 {
		c.RateLimits.Listen = 30
	}
	if c.RateLimits.Recognise == 0 {
		c.RateLimits.Recognise = 60
	}
	if c.RateLimits.Process == 0 {
		c.RateLimits.Process = 20
	}
	if c.RateLimits.Health == 0 {
		c.RateLimits.Health = 100
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.BitDepth == 0 {
		c.Audio.BitDepth = 16
	}

	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.015
	}

	if c.Wake.Phrase == "" {
		c.Wake.Phrase = "hi nova"
	}
	if c.Wake.SimilarityThreshold == 0 {
		c.Wake.SimilarityThreshold = 0.7
	}

	if c.Transcription.Language == "" {
		c.Transcription.Language = "en"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 4
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Wake.Validate(); err != nil {
		return fmt.Errorf("wake config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates rate limit configuration
func (r *RateLimitConfig) Validate() error {
	for name, limit := range map[string]int{
		"listen":    r.Listen,
		"recognise": r.Recognise,
		"process":   r.Process,
		"health":    r.Health,
	} {
		if limit < 1 {
			return fmt.Errorf("%s must be at least 1 request per minute, got %d", name, limit)
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	switch a.BitDepth {
	case 8, 16, 32:
	default:
		return fmt.Errorf("bit_depth must be 8, 16 or 32, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold <= 0 || v.Threshold >= 1 {
		return fmt.Errorf("threshold must be between 0 and 1 (exclusive), got %f", v.Threshold)
	}

	return nil
}

// Validate validates wake phrase configuration
func (w *WakeConfig) Validate() error {
	if w.Phrase == "" {
		return fmt.Errorf("phrase cannot be empty")
	}

	if w.SimilarityThreshold <= 0 || w.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 (exclusive) and 1, got %f",
			w.SimilarityThreshold)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
