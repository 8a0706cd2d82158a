package transcription

import (
	"context"
	"errors"
	"time"

	"github.com/sai-assistant/sai/pkg/logger"
)

// ErrNoEngine means neither the local server nor cloud credentials are
// available. Startup treats this as fatal.
var ErrNoEngine = errors.New("no transcription engine available: whisper-server unreachable and no API key configured")

// ResolveConfig carries the inputs to engine resolution.
type ResolveConfig struct {
	WhisperServerURL string
	Language         string
	APIKey           string
	CloudModel       string
	Timeout          time.Duration
}

// probeTimeout bounds the startup reachability check so a dead local
// server does not delay launch.
const probeTimeout = 3 * time.Second

// Resolve selects the transcription engine once at startup: the local
// whisper-server when reachable, otherwise the cloud API when an API
// key is configured. The choice is fixed for the process lifetime.
func Resolve(ctx context.Context, cfg ResolveConfig, log *logger.Logger) (Engine, error) {
	local := NewLocalEngine(cfg.WhisperServerURL, cfg.Language, cfg.Timeout, log)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := local.Probe(probeCtx)
	if err == nil {
		log.Info("Transcription engine selected",
			logger.String("engine", local.Name()),
			logger.String("server_url", cfg.WhisperServerURL))
		return local, nil
	}
	log.Info("Local whisper-server unreachable, falling back to cloud",
		logger.String("server_url", cfg.WhisperServerURL),
		logger.Error(err))

	if cfg.APIKey != "" {
		cloud := NewCloudEngine(cfg.APIKey, cfg.CloudModel, cfg.Language, cfg.Timeout, log)
		log.Info("Transcription engine selected",
			logger.String("engine", cloud.Name()),
			logger.String("model", cfg.CloudModel))
		return cloud, nil
	}

	return nil, ErrNoEngine
}
