package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem found in cfg, joined.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	if !cfg.Dialogue.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("dialogue.transport %q is invalid; valid values: websocket, http", cfg.Dialogue.Transport))
	}
	if cfg.Dialogue.URL == "" {
		errs = append(errs, errors.New("dialogue.url is required"))
	} else if err := validateDialogueURL(cfg.Dialogue.Transport, cfg.Dialogue.URL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Dialogue.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("dialogue.handshake_timeout %s must not be negative", cfg.Dialogue.HandshakeTimeout))
	}

	switch cfg.Capture.Provider {
	case "deepgram", "none":
	default:
		errs = append(errs, fmt.Errorf("capture.provider %q is invalid; valid values: deepgram, none", cfg.Capture.Provider))
	}
	if cfg.Capture.QuietWindow < 0 {
		errs = append(errs, fmt.Errorf("capture.quiet_window %s must not be negative", cfg.Capture.QuietWindow))
	}
	if cfg.Capture.Restarts() < 0 {
		errs = append(errs, fmt.Errorf("capture.max_restarts %d must not be negative", cfg.Capture.Restarts()))
	}

	if !cfg.Playback.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("playback.engine %q is invalid; valid values: miniaudio, portaudio, none", cfg.Playback.Engine))
	}

	return errors.Join(errs...)
}

func validateDialogueURL(transport Transport, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("dialogue.url %q: %w", raw, err)
	}

	var allowed []string
	switch transport {
	case TransportWebsocket:
		allowed = []string{"ws", "wss"}
	case TransportHTTP:
		allowed = []string{"http", "https"}
	default:
		return nil
	}
	for _, scheme := range allowed {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("dialogue.url %q must use one of %v for the %s transport", raw, allowed, transport)
}
