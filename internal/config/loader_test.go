package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-voiceloop/internal/config"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
dialogue:
  url: ws://localhost:8080/dialogue
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	if cfg.Dialogue.Transport != config.TransportWebsocket {
		t.Errorf("expected websocket transport, got %q", cfg.Dialogue.Transport)
	}
	if cfg.Dialogue.Model != config.DefaultModel {
		t.Errorf("expected default model, got %q", cfg.Dialogue.Model)
	}
	if cfg.Capture.QuietWindow != 750*time.Millisecond {
		t.Errorf("expected 750ms quiet window, got %s", cfg.Capture.QuietWindow)
	}
	if cfg.Capture.Locale != "en-US" {
		t.Errorf("expected en-US locale, got %q", cfg.Capture.Locale)
	}
	if cfg.Capture.Restarts() != config.DefaultMaxRestarts {
		t.Errorf("expected default restarts, got %d", cfg.Capture.Restarts())
	}
	if cfg.Playback.Engine != config.EngineMiniaudio {
		t.Errorf("expected miniaudio engine, got %q", cfg.Playback.Engine)
	}
	if cfg.Log.Level != config.LogLevelInfo {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
}

func TestLoadFromReader_ExplicitValues(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: debug
dialogue:
  transport: http
  url: https://example.com/dialogue
  model: gpt-4o-mini
  headers:
    X-Api-Key: secret
capture:
  provider: none
  quiet_window: 1.2s
  max_restarts: 0
playback:
  engine: portaudio
prompt:
  default: You are a pirate
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	if cfg.Dialogue.Transport != config.TransportHTTP || cfg.Dialogue.Headers["X-Api-Key"] != "secret" {
		t.Errorf("unexpected dialogue config %+v", cfg.Dialogue)
	}
	if cfg.Capture.QuietWindow != 1200*time.Millisecond {
		t.Errorf("expected 1.2s quiet window, got %s", cfg.Capture.QuietWindow)
	}
	if cfg.Capture.Restarts() != 0 {
		t.Errorf("expected explicit zero restarts to survive defaults, got %d", cfg.Capture.Restarts())
	}
	if cfg.Capture.Enabled() {
		t.Errorf("expected capture provider none to disable capture")
	}
	if cfg.Prompt.Default != "You are a pirate" {
		t.Errorf("unexpected prompt %q", cfg.Prompt.Default)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
dialogue:
  url: ws://localhost:8080/dialogue
  retries: 3
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: verbose
dialogue:
  transport: grpc
capture:
  provider: whisper
  quiet_window: -1s
playback:
  engine: speakers
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"log.level", "dialogue.transport", "dialogue.url is required", "capture.provider", "capture.quiet_window", "playback.engine"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_URLSchemeMatchesTransport(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{name: "websocket with ws", yaml: "dialogue:\n  url: ws://localhost/dialogue\n"},
		{name: "websocket with wss", yaml: "dialogue:\n  url: wss://example.com/dialogue\n"},
		{name: "websocket with http", yaml: "dialogue:\n  url: http://localhost/dialogue\n", wantErr: true},
		{name: "http with https", yaml: "dialogue:\n  transport: http\n  url: https://example.com/dialogue\n"},
		{name: "http with ws", yaml: "dialogue:\n  transport: http\n  url: ws://localhost/dialogue\n", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(testCase.yaml))
			if testCase.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "voiceloop.yaml")
	if err := os.WriteFile(path, []byte("dialogue:\n  url: ws://localhost/dialogue\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Dialogue.URL != "ws://localhost/dialogue" {
		t.Errorf("unexpected url %q", cfg.Dialogue.URL)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	t.Parallel()
	if got := config.LogLevel("debug").SlogLevel().String(); got != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", got)
	}
	if got := config.LogLevel("").SlogLevel().String(); got != "INFO" {
		t.Errorf("expected INFO fallback, got %s", got)
	}
}
