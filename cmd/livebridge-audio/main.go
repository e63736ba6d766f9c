// Command livebridge-audio is an interactive voice client: it streams
// microphone audio to a live model session and plays the spoken
// replies, with barge-in, tool calling, and automatic reconnection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonacove/livebridge/internal/dotenv"
	"github.com/sonacove/livebridge/pkg/session"
	"github.com/sonacove/livebridge/pkg/transport"
)

const micChunkMs = 20

func main() {
	endpoint := flag.String("endpoint", "", "live API websocket endpoint (or LIVEBRIDGE_ENDPOINT)")
	model := flag.String("model", "", "model identifier, overrides config file")
	voice := flag.String("voice", "", "voice name, overrides config file")
	configPath := flag.String("config", "", "session config file (yaml or json)")
	metricsAddr := flag.String("metrics-addr", "", "expose Prometheus metrics on this address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if err := dotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := session.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.ResponseModality = session.ModalityAudio
	cfg.TranscribeOutput = true
	if *model != "" {
		cfg.Model = *model
	}
	if *voice != "" {
		cfg.Voice = *voice
	}
	if *endpoint == "" {
		*endpoint = os.Getenv("LIVEBRIDGE_ENDPOINT")
	}
	if *endpoint == "" {
		logger.Error("no endpoint: pass -endpoint or set LIVEBRIDGE_ENDPOINT")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	metrics := session.NewMetrics("livebridge")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("metrics listening", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	registry := demoRegistry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audio, err := newAudioIO(cfg.InputFormat, cfg.OutputFormat, cfg.PlaybackBufferMs)
	if err != nil {
		logger.Error("audio init", "error", err)
		os.Exit(1)
	}
	defer audio.Close()

	dialer := &transport.WebSocketDialer{Header: authHeader()}
	tracker := session.NewTracker()

	deps := session.Dependencies{
		Config:   *cfg,
		Registry: registry,
		Logger:   logger,
		Metrics:  metrics,
	}

	s, err := session.Dial(ctx, dialer, *endpoint, deps)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}

	for {
		tracker.Track(s)
		runSession(ctx, logger, s, audio)

		if ctx.Err() != nil || s.Err() == nil {
			break
		}
		// Connection died; resume where we left off when possible.
		if _, ok := s.ResumptionHandle(); !ok {
			logger.Error("session failed and cannot be resumed", "error", s.Err())
			os.Exit(1)
		}
		logger.Info("reconnecting with resumption handle")
		next, err := session.Redial(ctx, dialer, *endpoint, s)
		if err != nil {
			logger.Error("reconnect", "error", err)
			os.Exit(1)
		}
		s = next
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tracker.CloseAll()
	tracker.Wait(waitCtx)
}

// runSession pumps microphone audio in and events out until the
// session terminates or ctx is cancelled.
func runSession(ctx context.Context, logger *slog.Logger, s *session.Session, audio *audioIO) {
	audio.playback.Flush()

	micDone := make(chan struct{})
	go func() {
		defer close(micDone)
		chunk := make([]byte, audio.inputFormat.BytesForDurationMs(micChunkMs))
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.Done():
				return
			default:
			}
			n := audio.mic.Read(chunk)
			if n == 0 {
				continue
			}
			if err := s.SendAudio(chunk[:n]); err != nil {
				return
			}
		}
	}()

	ctxDone := ctx.Done()
	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			_ = s.Close()
		case ev, ok := <-s.Events():
			if !ok {
				// The mic goroutine may be parked in Read with no
				// audio arriving; kick it loose so it sees Done.
				audio.mic.wake()
				<-micDone
				return
			}
			handleEvent(logger, s, audio, ev)
		}
	}
}

func handleEvent(logger *slog.Logger, s *session.Session, audio *audioIO, ev session.Event) {
	switch e := ev.(type) {
	case *session.AudioChunkEvent:
		if dropped := audio.playback.Push(e.Data); dropped > 0 {
			logger.Debug("playback overflow", "dropped_chunks", dropped)
		}
	case *session.InterruptedEvent:
		flushed := audio.playback.Flush()
		logger.Debug("barge-in", "turn", e.Turn, "flushed_chunks", flushed)
	case *session.TextDeltaEvent:
		fmt.Print(e.Text)
	case *session.TranscriptEvent:
		if e.Kind == session.TranscriptOutput {
			fmt.Print(e.Text)
		}
	case *session.TurnCompleteEvent:
		fmt.Println()
	case *session.ToolCallEvent:
		logger.Info("tool call", "id", e.ID, "name", e.Name)
	case *session.GoAwayEvent:
		logger.Warn("server draining connection", "time_left", e.TimeLeft)
	case *session.UsageEvent:
		logger.Debug("usage", "total_tokens", e.Usage.TotalTokens)
	case *session.CompressionEvent:
		logger.Info("context window compressed", "activations", e.Compression.Activations)
	case *session.ErrorEvent:
		logger.Warn("session error", "error", e.Err)
	case *session.ClosedEvent:
		if e.Err != nil {
			logger.Warn("session ended", "reason", e.Reason, "error", e.Err)
		} else {
			logger.Info("session ended", "reason", e.Reason)
		}
	}
}

func authHeader() http.Header {
	header := make(http.Header)
	if key := os.Getenv("LIVEBRIDGE_API_KEY"); key != "" {
		header.Set("Authorization", "Bearer "+key)
	}
	return header
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
