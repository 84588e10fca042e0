// Package config holds the YAML configuration of the ema-voiceloop binary.
package config

import (
	"log/slog"
	"time"

	"github.com/koscakluka/ema-voiceloop/internal/utils"
)

const (
	DefaultQuietWindow = 750 * time.Millisecond
	DefaultLocale      = "en-US"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxRestarts = 3

	DefaultHandshakeTimeout = 10 * time.Second
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// SlogLevel maps the level onto slog, falling back to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Transport string

const (
	TransportWebsocket Transport = "websocket"
	TransportHTTP      Transport = "http"
)

func (t Transport) IsValid() bool { return t == TransportWebsocket || t == TransportHTTP }

type Engine string

const (
	EngineMiniaudio Engine = "miniaudio"
	EnginePortaudio Engine = "portaudio"
	EngineNone      Engine = "none"
)

func (e Engine) IsValid() bool {
	switch e {
	case EngineMiniaudio, EnginePortaudio, EngineNone:
		return true
	}
	return false
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
	Prompt   PromptConfig   `yaml:"prompt"`
}

type LogConfig struct {
	Level LogLevel `yaml:"level"`
}

type DialogueConfig struct {
	Transport        Transport         `yaml:"transport"`
	URL              string            `yaml:"url"`
	Model            string            `yaml:"model"`
	Headers          map[string]string `yaml:"headers"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
}

type CaptureConfig struct {
	// Provider is "deepgram" or "none" for typed input only.
	Provider    string        `yaml:"provider"`
	Locale      string        `yaml:"locale"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	QuietWindow time.Duration `yaml:"quiet_window"`
	// MaxRestarts is a pointer so an explicit 0 disables restarts.
	MaxRestarts *int `yaml:"max_restarts"`
}

func (c CaptureConfig) Restarts() int { return utils.Deref(c.MaxRestarts, DefaultMaxRestarts) }

func (c CaptureConfig) Enabled() bool { return c.Provider != "none" }

type PlaybackConfig struct {
	Engine Engine `yaml:"engine"`
}

type PromptConfig struct {
	Default string `yaml:"default"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogLevelInfo
	}
	if cfg.Dialogue.Transport == "" {
		cfg.Dialogue.Transport = TransportWebsocket
	}
	if cfg.Dialogue.Model == "" {
		cfg.Dialogue.Model = DefaultModel
	}
	if cfg.Dialogue.HandshakeTimeout == 0 {
		cfg.Dialogue.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Capture.Provider == "" {
		cfg.Capture.Provider = "deepgram"
	}
	if cfg.Capture.Locale == "" {
		cfg.Capture.Locale = DefaultLocale
	}
	if cfg.Capture.QuietWindow == 0 {
		cfg.Capture.QuietWindow = DefaultQuietWindow
	}
	if cfg.Capture.MaxRestarts == nil {
		cfg.Capture.MaxRestarts = utils.Ptr(DefaultMaxRestarts)
	}
	if cfg.Playback.Engine == "" {
		cfg.Playback.Engine = EngineMiniaudio
	}
}
