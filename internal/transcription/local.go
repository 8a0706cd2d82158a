package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/segmenter"
	"github.com/sai-assistant/sai/pkg/logger"
)

const localEngineName = "local-whisper"

// LocalEngine transcribes against a running whisper-server instance
// over its REST API (POST /inference with a multipart WAV upload).
type LocalEngine struct {
	serverURL string
	language  string
	client    *http.Client
	logger    *logger.Logger
}

// NewLocalEngine creates an engine targeting the whisper-server at
// serverURL. Use Probe to verify the server is actually reachable
// before selecting the engine.
func NewLocalEngine(serverURL, language string, timeout time.Duration, log *logger.Logger) *LocalEngine {
	return &LocalEngine{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  language,
		client:    &http.Client{Timeout: timeout},
		logger:    log.Named("whisper-local"),
	}
}

// Name implements Engine.
func (e *LocalEngine) Name() string { return localEngineName }

// Probe checks that the whisper-server is up. Any HTTP response counts
// as alive; only transport failures mean the server is absent.
func (e *LocalEngine) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+"/health", nil)
	if err != nil {
		return &Error{Kind: KindNetworkUnavailable, Engine: localEngineName, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetworkUnavailable, Engine: localEngineName, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Transcribe implements Engine.
func (e *LocalEngine) Transcribe(ctx context.Context, seg *segmenter.Segment) (Result, error) {
	wav := audio.EncodeWAV(seg.PCM, seg.SampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		return Result{}, &Error{Kind: KindModelLoadFailed, Engine: localEngineName, Err: err}
	}
	if _, err := fw.Write(wav); err != nil {
		return Result{}, &Error{Kind: KindModelLoadFailed, Engine: localEngineName, Err: err}
	}
	if e.language != "" {
		if err := mw.WriteField("language", e.language); err != nil {
			return Result{}, &Error{Kind: KindModelLoadFailed, Engine: localEngineName, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, &Error{Kind: KindModelLoadFailed, Engine: localEngineName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serverURL+"/inference", &body)
	if err != nil {
		return Result{}, &Error{Kind: KindNetworkUnavailable, Engine: localEngineName, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: KindNetworkUnavailable, Engine: localEngineName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &Error{
			Kind:   KindModelLoadFailed,
			Engine: localEngineName,
			Err:    fmt.Errorf("whisper-server returned HTTP %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Kind: KindNetworkUnavailable, Engine: localEngineName, Err: err}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{}, &Error{Kind: KindModelLoadFailed, Engine: localEngineName, Err: err}
	}

	text := strings.TrimSpace(parsed.Text)
	e.logger.Debug("Segment transcribed",
		logger.String("segment_id", seg.ID),
		logger.Duration("inference_time", time.Since(started)),
		logger.Int("chars", len(text)))

	if text == "" {
		return Result{}, &Error{Kind: KindEmpty, Engine: localEngineName}
	}
	return Result{Text: text, Engine: localEngineName}, nil
}
