// Package config loads and validates the TOML configuration file.
// The configuration is read once at startup and treated as read-only
// afterwards; no component mutates it.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration for the application.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Audio         AudioConfig         `toml:"audio"`
	VAD           VADConfig           `toml:"vad"`
	Segmenter     SegmenterConfig     `toml:"segmenter"`
	Transcription TranscriptionConfig `toml:"transcription"`
	LLM           LLMConfig           `toml:"llm"`
	Cache         CacheConfig         `toml:"cache"`
	Conversation  ConversationConfig  `toml:"conversation"`
	Storage       StorageConfig       `toml:"storage"`
	Modes         ModesConfig         `toml:"modes"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig configures the local control/event HTTP server.
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// AudioConfig configures the capture source.
type AudioConfig struct {
	Device       string `toml:"device"` // device name substring, empty = default input
	SampleRate   int    `toml:"sample_rate"`
	FrameMs      int    `toml:"frame_ms"`
	QueueFrames  int    `toml:"queue_frames"`  // capture channel depth
	SegmentQueue int    `toml:"segment_queue"` // sealed-segment hand-off depth
}

// VADConfig configures the frame-level speech detector.
type VADConfig struct {
	// Sensitivity in [0,1]: higher values classify quieter audio as speech.
	Sensitivity float64 `toml:"sensitivity"`
}

// SegmenterConfig configures utterance segmentation.
type SegmenterConfig struct {
	SilenceThresholdMs int `toml:"silence_threshold_ms"` // trailing silence that seals a segment
	MaxSegmentMs       int `toml:"max_segment_ms"`       // hard cap on one utterance
	MinFrames          int `toml:"min_frames"`           // segments shorter than this are dropped
	SilencePadFrames   int `toml:"silence_pad_frames"`   // trailing silence frames kept in the buffer
}

// TranscriptionConfig configures engine selection and filtering.
type TranscriptionConfig struct {
	// WhisperServerURL is the base URL of a local whisper.cpp server.
	// When the server does not answer the startup probe, the cloud
	// engine is used for the lifetime of the process.
	WhisperServerURL string `toml:"whisper_server_url"`
	Language         string `toml:"language"`
	CloudModel       string `toml:"cloud_model"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MinWords         int    `toml:"min_words"` // transcripts below this are not dispatched
}

// LLMConfig configures the language-model API client.
type LLMConfig struct {
	APIKey         string  `toml:"api_key"` // falls back to OPENAI_API_KEY
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	QueueSize      int     `toml:"queue_size"` // pending dispatches before overflow
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Capacity int `toml:"capacity"`
}

// ConversationConfig configures the rolling conversation context.
type ConversationConfig struct {
	MaxPairs        int `toml:"max_pairs"`         // pairs retained in memory
	PromptPairs     int `toml:"prompt_pairs"`      // recent pairs included in prompts
	PromptMaxRunes  int `toml:"prompt_max_runes"`  // cap on rendered prompt context
	PersistedEvents int `toml:"persisted_history"` // rows kept in sqlite history
}

// StorageConfig configures the sqlite persistence layer.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ModesConfig configures response-shaping modes.
type ModesConfig struct {
	Default        string `toml:"default"`
	CustomTemplate string `toml:"custom_template"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads the config file at path, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns the built-in defaults. The silence threshold and
// segment cap mirror the product defaults (1.5s / 8s) and remain tunable.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8187,
		},
		Audio: AudioConfig{
			SampleRate:   16000,
			FrameMs:      30,
			QueueFrames:  64,
			SegmentQueue: 8,
		},
		VAD: VADConfig{
			Sensitivity: 0.5,
		},
		Segmenter: SegmenterConfig{
			SilenceThresholdMs: 1500,
			MaxSegmentMs:       8000,
			MinFrames:          5,
			SilencePadFrames:   3,
		},
		Transcription: TranscriptionConfig{
			WhisperServerURL: "http://127.0.0.1:8178",
			Language:         "en",
			CloudModel:       "whisper-1",
			TimeoutSeconds:   30,
			MinWords:         2,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			MaxTokens:      100,
			Temperature:    0.3,
			TimeoutSeconds: 30,
			QueueSize:      16,
		},
		Cache: CacheConfig{
			Capacity: 100,
		},
		Conversation: ConversationConfig{
			MaxPairs:        100,
			PromptPairs:     2,
			PromptMaxRunes:  200,
			PersistedEvents: 100,
		},
		Storage: StorageConfig{
			Path: "sai.db",
		},
		Modes: ModesConfig{
			Default: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	switch c.Audio.FrameMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("audio.frame_ms must be 10, 20 or 30, got %d", c.Audio.FrameMs)
	}
	if c.VAD.Sensitivity < 0 || c.VAD.Sensitivity > 1 {
		return fmt.Errorf("vad.sensitivity must be in [0,1], got %f", c.VAD.Sensitivity)
	}
	if c.Segmenter.SilenceThresholdMs <= 0 {
		return fmt.Errorf("segmenter.silence_threshold_ms must be positive, got %d", c.Segmenter.SilenceThresholdMs)
	}
	if c.Segmenter.MaxSegmentMs <= c.Segmenter.SilenceThresholdMs {
		return fmt.Errorf("segmenter.max_segment_ms (%d) must exceed silence_threshold_ms (%d)",
			c.Segmenter.MaxSegmentMs, c.Segmenter.SilenceThresholdMs)
	}
	if c.Segmenter.MinFrames < 1 {
		return fmt.Errorf("segmenter.min_frames must be at least 1, got %d", c.Segmenter.MinFrames)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Conversation.MaxPairs < 1 {
		return fmt.Errorf("conversation.max_pairs must be at least 1, got %d", c.Conversation.MaxPairs)
	}
	if c.LLM.QueueSize < 1 {
		return fmt.Errorf("llm.queue_size must be at least 1, got %d", c.LLM.QueueSize)
	}
	return nil
}
