// Command sai runs the speech assistant: it captures microphone audio,
// segments speech, transcribes it, and serves LLM responses plus a
// control API to the overlay UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sai-assistant/sai/internal/api"
	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/internal/config"
	"github.com/sai-assistant/sai/internal/conversation"
	"github.com/sai-assistant/sai/internal/dispatch"
	"github.com/sai-assistant/sai/internal/events"
	"github.com/sai-assistant/sai/internal/pipeline"
	"github.com/sai-assistant/sai/internal/segmenter"
	"github.com/sai-assistant/sai/internal/storage/sqlite"
	"github.com/sai-assistant/sai/internal/templating"
	"github.com/sai-assistant/sai/internal/transcription"
	"github.com/sai-assistant/sai/internal/vad"
	"github.com/sai-assistant/sai/pkg/logger"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sai: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sai: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Fatal error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting sai",
		logger.String("version", version),
		logger.String("mode", cfg.Modes.Default))

	// Persistence.
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	history, err := sqlite.NewHistoryStorage(db, log)
	if err != nil {
		return err
	}
	stats, err := sqlite.NewStatsStorage(db, log)
	if err != nil {
		return err
	}

	// Transcription engine, chosen once for the process lifetime.
	engine, err := transcription.Resolve(ctx, transcription.ResolveConfig{
		WhisperServerURL: cfg.Transcription.WhisperServerURL,
		Language:         cfg.Transcription.Language,
		APIKey:           cfg.LLM.APIKey,
		CloudModel:       cfg.Transcription.CloudModel,
		Timeout:          time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return err
	}

	// Conversation context, restored from the previous session.
	convContext := conversation.New(cfg.Conversation.MaxPairs)
	if pairs, err := history.RecentPairs(cfg.Conversation.PersistedEvents); err != nil {
		log.Warn("Failed to restore conversation context", logger.Error(err))
	} else if len(pairs) > 0 {
		convContext.Restore(pairs)
		log.Info("Conversation context restored", logger.Int("pairs", len(pairs)))
	}

	responseCache := cache.New(cfg.Cache.Capacity)
	renderer := templating.NewRenderer(cfg.Modes.CustomTemplate)

	dispatcher := dispatch.New(
		dispatch.NewOpenAIClient(dispatch.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   int64(cfg.LLM.MaxTokens),
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		}),
		responseCache,
		convContext,
		renderer,
		dispatch.Config{
			QueueSize:      cfg.LLM.QueueSize,
			PromptPairs:    cfg.Conversation.PromptPairs,
			PromptMaxRunes: cfg.Conversation.PromptMaxRunes,
		},
		log,
	)

	// Capture.
	source, err := audio.NewPortAudioSource(
		cfg.Audio.SampleRate,
		cfg.Audio.FrameMs,
		cfg.Audio.QueueFrames,
		cfg.Audio.Device,
		log,
	)
	if err != nil {
		return err
	}
	defer source.Terminate()

	hub := events.NewHub()

	pipe := pipeline.New(
		source,
		vad.New(cfg.VAD.Sensitivity),
		segmenter.New(segmenter.Config{
			FrameMs:            cfg.Audio.FrameMs,
			SilenceThresholdMs: cfg.Segmenter.SilenceThresholdMs,
			MaxSegmentMs:       cfg.Segmenter.MaxSegmentMs,
			MinFrames:          cfg.Segmenter.MinFrames,
			SilencePadFrames:   cfg.Segmenter.SilencePadFrames,
		}),
		engine,
		dispatcher,
		hub,
		history,
		cfg.Modes.Default,
		pipeline.Config{
			SegmentQueue: cfg.Audio.SegmentQueue,
			MinWords:     cfg.Transcription.MinWords,
			HistoryKeep:  cfg.Conversation.PersistedEvents,
		},
		log,
	)

	// Control API.
	handler := api.NewHandler(pipe, responseCache, history, stats, audio.ListDevices, api.Info{
		Version:    version,
		EngineName: engine.Name(),
		StartedAt:  time.Now(),
	}, log)
	bridge := events.NewWSBridge(hub, cfg.Server.CORSAllowedOrigins, log)
	router := api.NewRouter(handler, bridge, cfg, log)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return pipe.Run(gctx) })

	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Info("Control API listening", logger.String("addr", server.Addr))
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Persist the cache counters for the next session's stats view.
	if statsErr := stats.Record(responseCache.Stats()); statsErr != nil {
		log.Warn("Failed to persist cache stats", logger.Error(statsErr))
	}

	log.Info("Shutdown complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
