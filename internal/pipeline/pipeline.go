// Package pipeline wires capture, voice detection, segmentation,
// transcription, and dispatch into one running unit. Four goroutines
// cooperate: the capture loop classifies frames and seals segments, the
// transcription worker turns segments into text and submits them, the
// response loop awaits and publishes dispatch results, and the dispatch
// worker (owned by the dispatch package) talks to the LLM.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/dispatch"
	"github.com/sai-assistant/sai/internal/events"
	"github.com/sai-assistant/sai/internal/segmenter"
	"github.com/sai-assistant/sai/internal/storage/sqlite"
	"github.com/sai-assistant/sai/internal/templating"
	"github.com/sai-assistant/sai/internal/transcription"
	"github.com/sai-assistant/sai/internal/vad"
	"github.com/sai-assistant/sai/pkg/logger"
)

// Config holds the pipeline knobs not owned by a component.
type Config struct {
	SegmentQueue int
	MinWords     int
	// HistoryKeep bounds the persisted history; 0 disables pruning.
	HistoryKeep int
}

// control messages handled on the capture loop, keeping the segmenter
// single-threaded.
type controlMsg struct {
	listening bool
}

// pendingExchange is a submitted dispatch awaiting its result. The
// response loop drains these in submission order so the transcription
// worker never waits on the LLM.
type pendingExchange struct {
	future *dispatch.Future
	engine string
}

// Pipeline owns the capture-to-response flow. Construct with New, run
// with Run, steer with SetListening and SetMode.
type Pipeline struct {
	source     audio.Source
	detector   *vad.Detector
	segmenter  *segmenter.Segmenter
	engine     transcription.Engine
	dispatcher *dispatch.Dispatcher
	hub        *events.Hub
	history    *sqlite.HistoryStorage
	cfg        Config
	logger     *logger.Logger

	segments chan *segmenter.Segment
	pending  chan pendingExchange
	control  chan controlMsg

	listening atomic.Bool
	paused    atomic.Bool

	// runCtx is the lifetime the capture stream is bound to, set by Run.
	// Device reselection restarts the stream on this context, not on the
	// caller's request-scoped one.
	ctxMu  sync.Mutex
	runCtx context.Context

	modeMu sync.RWMutex
	mode   string
}

// New assembles a pipeline. The initial mode must be valid; listening
// starts enabled.
func New(
	source audio.Source,
	detector *vad.Detector,
	seg *segmenter.Segmenter,
	engine transcription.Engine,
	dispatcher *dispatch.Dispatcher,
	hub *events.Hub,
	history *sqlite.HistoryStorage,
	initialMode string,
	cfg Config,
	log *logger.Logger,
) *Pipeline {
	if cfg.SegmentQueue <= 0 {
		cfg.SegmentQueue = 8
	}
	p := &Pipeline{
		source:     source,
		detector:   detector,
		segmenter:  seg,
		engine:     engine,
		dispatcher: dispatcher,
		hub:        hub,
		history:    history,
		cfg:        cfg,
		logger:     log.Named("pipeline"),
		segments:   make(chan *segmenter.Segment, cfg.SegmentQueue),
		pending:    make(chan pendingExchange, 32),
		control:    make(chan controlMsg, 4),
		mode:       initialMode,
	}
	p.listening.Store(true)
	return p
}

// Run starts the capture loop and transcription worker and blocks until
// ctx is cancelled or capture fails unrecoverably.
func (p *Pipeline) Run(ctx context.Context) error {
	p.ctxMu.Lock()
	p.runCtx = ctx
	p.ctxMu.Unlock()

	if err := p.source.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.captureLoop(ctx) })
	g.Go(func() error { return p.transcribeLoop(ctx) })
	g.Go(func() error { return p.responseLoop(ctx) })

	err := g.Wait()
	p.source.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Listening reports whether frames currently feed the segmenter.
func (p *Pipeline) Listening() bool { return p.listening.Load() }

// SetListening toggles capture. Turning listening off aborts any open
// segment so no partial utterance leaks through later.
func (p *Pipeline) SetListening(on bool) {
	if p.listening.Swap(on) == on {
		return
	}
	select {
	case p.control <- controlMsg{listening: on}:
	default:
	}
	p.hub.Publish(events.TypeListening, events.Listening{Listening: on})
	p.logger.Info("Listening toggled", logger.Bool("listening", on))
}

// Mode returns the active assistant mode.
func (p *Pipeline) Mode() string {
	p.modeMu.RLock()
	defer p.modeMu.RUnlock()
	return p.mode
}

// SetMode switches the assistant mode for subsequent dispatches.
func (p *Pipeline) SetMode(mode string) error {
	if !templating.IsValidMode(mode) {
		return errors.New("unknown mode: " + mode)
	}
	p.modeMu.Lock()
	p.mode = mode
	p.modeMu.Unlock()
	p.hub.Publish(events.TypeMode, events.ModeChange{Mode: mode})
	p.logger.Info("Mode changed", logger.String("mode", mode))
	return nil
}

// SelectDevice switches capture to the named device and restarts the
// stream. Clears the device-lost pause.
func (p *Pipeline) SelectDevice(ctx context.Context, name string) error {
	p.ctxMu.Lock()
	runCtx := p.runCtx
	p.ctxMu.Unlock()
	if runCtx == nil {
		runCtx = ctx
	}

	p.source.Stop()
	p.source.SelectDevice(name)
	if err := p.source.Start(runCtx); err != nil {
		return err
	}
	p.paused.Store(false)
	return nil
}

// captureLoop classifies frames and feeds the segmenter. Sealed segments
// go to the transcription worker through a bounded queue; when the queue
// is full the segment is dropped so capture never stalls.
func (p *Pipeline) captureLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-p.control:
			if !msg.listening {
				p.segmenter.Abort()
				p.detector.Reset()
			}

		case err := <-p.source.Errors():
			p.paused.Store(true)
			p.segmenter.Abort()
			p.detector.Reset()
			p.hub.Publish(events.TypeError, events.PipelineError{
				Stage:   "capture",
				Kind:    "device_unavailable",
				Message: err.Error(),
			})
			p.logger.Warn("Capture paused, waiting for device reselection", logger.Error(err))

		case frame := <-p.source.Frames():
			if !p.listening.Load() || p.paused.Load() {
				continue
			}
			ev := p.segmenter.Ingest(frame, p.detector.IsSpeech(frame))
			switch ev.Kind {
			case segmenter.EventStarted:
				p.hub.Publish(events.TypeSpeechStart, events.SpeechStart{Started: frame.Captured})
			case segmenter.EventSealed:
				select {
				case p.segments <- ev.Segment:
				default:
					p.hub.Publish(events.TypeError, events.PipelineError{
						Stage:   "segmenter",
						Kind:    "segment_queue_full",
						Message: "segment dropped: transcription backlog",
					})
					p.logger.Warn("Segment queue full, dropping segment",
						logger.String("segment_id", ev.Segment.ID),
						logger.Duration("duration", ev.Segment.Duration()))
				}
			case segmenter.EventDropped:
				p.logger.Debug("Segment below minimum speech length, dropped")
			}
		}
	}
}

// transcribeLoop turns sealed segments into text and hands the
// surviving utterances to the dispatcher.
func (p *Pipeline) transcribeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg := <-p.segments:
			p.handleSegment(ctx, seg)
		}
	}
}

func (p *Pipeline) handleSegment(ctx context.Context, seg *segmenter.Segment) {
	res, err := p.engine.Transcribe(ctx, seg)
	if err != nil {
		kind := transcription.KindOf(err)
		if kind == transcription.KindEmpty {
			return
		}
		p.hub.Publish(events.TypeError, events.PipelineError{
			Stage:   "transcription",
			Kind:    kind.String(),
			Message: err.Error(),
		})
		p.logger.Warn("Transcription failed",
			logger.String("segment_id", seg.ID),
			logger.String("kind", kind.String()),
			logger.Error(err))
		return
	}

	filtered := wordCount(res.Text) < p.cfg.MinWords

	// Raw text always reaches the UI, even when too short to dispatch.
	p.hub.Publish(events.TypeTranscription, events.Transcription{
		SegmentID: seg.ID,
		Text:      res.Text,
		Engine:    res.Engine,
		Filtered:  filtered,
	})
	if filtered {
		return
	}

	mode := p.Mode()
	future, err := p.dispatcher.Submit(res.Text, mode)
	if err != nil {
		p.hub.Publish(events.TypeError, events.PipelineError{
			Stage:   "dispatch",
			Kind:    "queue_full",
			Message: err.Error(),
		})
		return
	}

	// Hand the future to the response loop so the next segment can be
	// transcribed while this one waits on the LLM.
	select {
	case p.pending <- pendingExchange{future: future, engine: res.Engine}:
	case <-ctx.Done():
	}
}

// responseLoop awaits dispatch futures in submission order, publishing
// and persisting each completed exchange.
func (p *Pipeline) responseLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pe := <-p.pending:
			p.finishExchange(ctx, pe)
		}
	}
}

func (p *Pipeline) finishExchange(ctx context.Context, pe pendingExchange) {
	result, err := pe.future.Wait(ctx)
	if err != nil {
		return
	}
	if result.Err != nil {
		p.hub.Publish(events.TypeError, events.PipelineError{
			Stage:   "dispatch",
			Kind:    dispatch.KindOf(result.Err).String(),
			Message: result.Err.Error(),
		})
		return
	}

	p.hub.Publish(events.TypeResponse, events.Response{
		Utterance: result.Utterance,
		Response:  result.Response,
		Mode:      result.Mode,
		Cached:    result.Cached,
	})

	if p.history != nil {
		_, err := p.history.Store(&sqlite.ExchangeRecord{
			Utterance: result.Utterance,
			Response:  result.Response,
			Mode:      result.Mode,
			Engine:    pe.engine,
			Cached:    result.Cached,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			p.logger.Error("Failed to persist exchange", logger.Error(err))
		} else if p.cfg.HistoryKeep > 0 {
			if err := p.history.Prune(p.cfg.HistoryKeep); err != nil {
				p.logger.Error("Failed to prune history", logger.Error(err))
			}
		}
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
