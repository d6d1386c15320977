package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/capture"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/config"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/connectivity"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/conversation"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/playback"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/resilience"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/tts"
)

// version is set at build time
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	identity := conversation.NewIdentity()
	metrics := observability.NewSessionMetrics(identity.String())

	logger.Info().
		Str("api_base_url", cfg.BaseURL()).
		Str("user_id", identity.String()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Chat client starting")

	chat := dialogue.NewClient(cfg)
	synth := tts.NewClient(cfg, metrics)

	profile := recorder.DefaultProfile()
	profile.SampleRate = cfg.CaptureSampleRate
	session := recorder.NewSession(capture.NewOpusDevice(capture.FileSource{Path: cfg.CapturePCMPath}), recorder.Options{
		MinDuration: cfg.MinRecording(),
		Timeslice:   cfg.ChunkInterval(),
		Profile:     profile,
		Metrics:     metrics,
	})

	engine := conversation.NewEngine(identity, chat, session, conversation.Options{
		ReplyDelay: cfg.ReplyDelay(),
		Metrics:    metrics,
	})

	player := playback.NewManager(engine, synth, newOutput(cfg.PlayerCommand, logger), metrics)
	engine.OnReset(player.Reset)

	monitor := connectivity.NewMonitor(chat, time.Duration(cfg.HealthInterval)*time.Second, &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  time.Duration(cfg.HealthInterval) * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Connectivity monitor stopped")
		}
	}()

	var server *http.Server
	if cfg.MetricsEnabled {
		server = startMetricsServer(cfg, monitor, logger)
	}

	printBanner()
	con := newConsole(engine, player, monitor, chat, os.Stdout)
	if err := con.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Console stopped")
	}

	logger.Info().Msg("Shutting down...")
	session.Abort()
	player.Reset()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Metrics server forced to shutdown")
		}
	}

	logger.Info().Msg("Chat client exited")
}

func printBanner() {
	tpl := "{{ .Title \"CCI Global\" \"\" 0 }}\nChat client " + version + "\n\n"
	banner.Init(os.Stdout, true, false, bytes.NewBufferString(tpl))
}

// newOutput picks the audio sink. Without a usable player, clips are timed
// but not heard.
func newOutput(command string, logger zerolog.Logger) playback.Output {
	if command == "" {
		return playback.NewNullOutput()
	}
	out, err := playback.NewCommandOutput(command)
	if err != nil {
		logger.Warn().Err(err).Msg("Audio player unavailable, playback will be silent")
		return playback.NewNullOutput()
	}
	return out
}

func startMetricsServer(cfg *config.Config, monitor *connectivity.Monitor, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", observability.HealthCheckHandler(version))
	mux.HandleFunc("/ready", observability.ReadinessHandler(version, map[string]observability.HealthCheckFunc{
		"dialogue": monitor.Check,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.MetricsPort).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}
