// Command ema-voiceloop runs a spoken conversation with a remote dialogue
// service from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/koscakluka/ema-voiceloop/core"
	"github.com/koscakluka/ema-voiceloop/core/audio/miniaudio"
	"github.com/koscakluka/ema-voiceloop/core/audio/portaudio"
	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	dialoguehttp "github.com/koscakluka/ema-voiceloop/core/dialogue/http"
	"github.com/koscakluka/ema-voiceloop/core/dialogue/websocket"
	"github.com/koscakluka/ema-voiceloop/core/speechcapture/deepgram"
	"github.com/koscakluka/ema-voiceloop/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	logPath := flag.String("log", "ema-voiceloop.log", "file the logs are written to while the UI is up")
	dialogueURL := flag.String("url", "", "dialogue service URL, overrides dialogue.url")
	printSchema := flag.Bool("print-schema", false, "print the JSON schema of the dialogue frames and exit")
	flag.Parse()

	if *printSchema {
		schema, err := dialogue.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
			return 1
		}
		fmt.Println(string(schema))
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *dialogueURL != "" {
		cfg.Dialogue.URL = *dialogueURL
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ema-voiceloop: invalid configuration:\n%v\n", err)
		return 1
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ema-voiceloop: open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()

	logger := newLogger(logFile, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel, closeChannel, err := buildChannel(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to the dialogue service", "error", err)
		fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
		return 1
	}
	defer closeChannel()

	opts := []orchestration.OrchestratorOption{
		orchestration.WithDialogueChannel(channel),
		orchestration.WithModel(cfg.Dialogue.Model),
		orchestration.WithLocale(cfg.Capture.Locale),
		orchestration.WithQuietWindow(cfg.Capture.QuietWindow),
		orchestration.WithMaxCaptureRestarts(cfg.Capture.Restarts()),
		orchestration.WithLogger(logger),
	}

	audioOpts, closeAudio, err := buildAudio(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise audio", "error", err)
		fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
		return 1
	}
	defer closeAudio()
	opts = append(opts, audioOpts...)

	orchestrator := orchestration.NewOrchestrator(opts...)
	defer orchestrator.Close()

	ui := newModel(orchestrator, cfg.Prompt.Default)
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))

	if err := orchestrator.Orchestrate(ctx, ui.callbacks(program)...); err != nil {
		logger.Error("failed to start the conversation runtime", "error", err)
		fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
		return 1
	}

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("terminal UI failed", "error", err)
		fmt.Fprintf(os.Stderr, "ema-voiceloop: %v\n", err)
		return 1
	}
	return 0
}

func buildChannel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dialogue.Channel, func(), error) {
	header := http.Header{}
	for key, value := range cfg.Dialogue.Headers {
		header.Set(key, value)
	}

	switch cfg.Dialogue.Transport {
	case config.TransportHTTP:
		client := dialoguehttp.NewClient(cfg.Dialogue.URL, dialoguehttp.WithHeader(header))
		return client, func() {}, nil

	default:
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Dialogue.HandshakeTimeout)
		defer cancel()

		client, err := websocket.Dial(dialCtx, cfg.Dialogue.URL,
			websocket.WithHeader(header),
			websocket.WithHandshakeTimeout(cfg.Dialogue.HandshakeTimeout),
			websocket.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close dialogue connection", "error", err)
			}
		}, nil
	}
}

// buildAudio wires the microphone into the recognizer and picks a player.
// The miniaudio context is opened only when something needs it.
func buildAudio(cfg *config.Config, logger *slog.Logger) ([]orchestration.OrchestratorOption, func(), error) {
	var (
		opts    []orchestration.OrchestratorOption
		closers []func()
		mic     *miniaudio.Client
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Capture.Enabled() || cfg.Playback.Engine == config.EngineMiniaudio {
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, closeAll, err
		}
		mic = client
		closers = append(closers, client.Close)
	}

	if cfg.Capture.Enabled() {
		providerOpts := []deepgram.Option{deepgram.WithModel(cfg.Capture.Model), deepgram.WithLogger(logger)}
		if cfg.Capture.APIKey != "" {
			providerOpts = append(providerOpts, deepgram.WithAPIKey(cfg.Capture.APIKey))
		}
		opts = append(opts, orchestration.WithSpeechCapture(deepgram.NewProvider(mic, providerOpts...)))
	}

	switch cfg.Playback.Engine {
	case config.EngineMiniaudio:
		opts = append(opts, orchestration.WithAudioPlayer(mic.Player()))
	case config.EnginePortaudio:
		player, err := portaudio.NewPlayer(0)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = player.Close() })
		opts = append(opts, orchestration.WithAudioPlayer(player))
	case config.EngineNone:
		logger.Info("audio playback disabled, replies are shown as text only")
	}

	return opts, closeAll, nil
}

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
}
