package transcription

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/segmenter"
	"github.com/sai-assistant/sai/pkg/logger"
)

const cloudEngineName = "openai-cloud"

// CloudEngine transcribes via the OpenAI audio transcription API.
type CloudEngine struct {
	client  openai.Client
	model   string
	lang    string
	timeout time.Duration
	logger  *logger.Logger
}

// NewCloudEngine creates a cloud engine. The API key must already be
// validated as present; engine resolution handles the missing-key case.
func NewCloudEngine(apiKey, model, language string, timeout time.Duration, log *logger.Logger) *CloudEngine {
	return &CloudEngine{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		lang:    language,
		timeout: timeout,
		logger:  log.Named("whisper-cloud"),
	}
}

// Name implements Engine.
func (e *CloudEngine) Name() string { return cloudEngineName }

// Transcribe implements Engine.
func (e *CloudEngine) Transcribe(ctx context.Context, seg *segmenter.Segment) (Result, error) {
	wav := audio.EncodeWAV(seg.PCM, seg.SampleRate, 1)

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	resp, err := e.client.Audio.Transcriptions.New(reqCtx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
		Model:    openai.AudioModel(e.model),
		Language: openai.String(e.lang),
	})
	if err != nil {
		return Result{}, e.classify(err)
	}

	text := strings.TrimSpace(resp.Text)
	e.logger.Debug("Segment transcribed",
		logger.String("segment_id", seg.ID),
		logger.Duration("inference_time", time.Since(started)),
		logger.Int("chars", len(text)))

	if text == "" {
		return Result{}, &Error{Kind: KindEmpty, Engine: cloudEngineName}
	}
	return Result{Text: text, Engine: cloudEngineName}, nil
}

// classify maps OpenAI API failures onto the transcription error kinds.
func (e *CloudEngine) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindUnauthorized, Engine: cloudEngineName, Err: err}
		default:
			return &Error{Kind: KindModelLoadFailed, Engine: cloudEngineName, Err: err}
		}
	}
	return &Error{Kind: KindNetworkUnavailable, Engine: cloudEngineName, Err: err}
}
