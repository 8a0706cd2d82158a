package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sai-assistant/sai/internal/audio"
	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/internal/conversation"
	"github.com/sai-assistant/sai/internal/dispatch"
	"github.com/sai-assistant/sai/internal/events"
	"github.com/sai-assistant/sai/internal/segmenter"
	"github.com/sai-assistant/sai/internal/templating"
	"github.com/sai-assistant/sai/internal/transcription"
	"github.com/sai-assistant/sai/internal/vad"
	"github.com/sai-assistant/sai/pkg/logger"
)

// fakeSource feeds frames from the test into the pipeline.
type fakeSource struct {
	frames chan audio.Frame
	errs   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames: make(chan audio.Frame, 1024),
		errs:   make(chan error, 1),
	}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Frames() <-chan audio.Frame      { return f.frames }
func (f *fakeSource) Errors() <-chan error            { return f.errs }
func (f *fakeSource) SelectDevice(string)             {}
func (f *fakeSource) Stop()                           {}

// fakeEngine returns a fixed transcript per segment.
type fakeEngine struct {
	mu    sync.Mutex
	texts []string
	next  int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Transcribe(ctx context.Context, seg *segmenter.Segment) (transcription.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	text := "this is a test utterance"
	if e.next < len(e.texts) {
		text = e.texts[e.next]
		e.next++
	}
	return transcription.Result{Text: text, Engine: "fake"}, nil
}

// fakeLLM echoes the submission count. When release is set, every call
// parks until the channel is closed.
type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (l *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	release := l.release
	l.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("response %d", n), nil
}

func speechFrame() audio.Frame {
	pcm := make([]int16, 480)
	for i := range pcm {
		pcm[i] = int16(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.Frame{PCM: pcm, SampleRate: 16000, Captured: time.Now()}
}

func silenceFrame() audio.Frame {
	return audio.Frame{PCM: make([]int16, 480), SampleRate: 16000, Captured: time.Now()}
}

type fixture struct {
	pipeline *Pipeline
	source   *fakeSource
	engine   *fakeEngine
	hub      *events.Hub
	sub      <-chan events.Event
	cancel   context.CancelFunc
}

func newFixture(t *testing.T, engine *fakeEngine) *fixture {
	return newFixtureLLM(t, engine, &fakeLLM{})
}

func newFixtureLLM(t *testing.T, engine *fakeEngine, llm *fakeLLM) *fixture {
	t.Helper()

	source := newFakeSource()
	hub := events.NewHub()
	_, sub := hub.Subscribe()

	d := dispatch.New(llm, cache.New(100), conversation.New(100),
		templating.NewRenderer(""), dispatch.Config{QueueSize: 8, PromptPairs: 2, PromptMaxRunes: 200},
		logger.Nop())

	seg := segmenter.New(segmenter.Config{
		FrameMs:            30,
		SilenceThresholdMs: 1500,
		MaxSegmentMs:       8000,
		MinFrames:          5,
		SilencePadFrames:   3,
	})

	p := New(source, vad.New(0.5), seg, engine, d, hub, nil,
		templating.ModeDefault, Config{SegmentQueue: 8, MinWords: 2}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	go p.Run(ctx)
	t.Cleanup(cancel)

	return &fixture{pipeline: p, source: source, engine: engine, hub: hub, sub: sub, cancel: cancel}
}

// speakUtterance pushes enough speech then silence to seal a segment.
func (fx *fixture) speakUtterance() {
	for i := 0; i < 20; i++ {
		fx.source.frames <- speechFrame()
	}
	for i := 0; i < 55; i++ {
		fx.source.frames <- silenceFrame()
	}
}

func waitEvent(t *testing.T, sub <-chan events.Event, want events.Type) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", want)
		}
	}
}

func TestSpeechToResponse(t *testing.T) {
	fx := newFixture(t, &fakeEngine{})
	fx.speakUtterance()

	waitEvent(t, fx.sub, events.TypeSpeechStart)

	ev := waitEvent(t, fx.sub, events.TypeTranscription)
	tr := ev.Payload.(events.Transcription)
	if tr.Text != "this is a test utterance" {
		t.Errorf("unexpected transcript %q", tr.Text)
	}
	if tr.Filtered {
		t.Error("long utterance should not be filtered")
	}

	ev = waitEvent(t, fx.sub, events.TypeResponse)
	resp := ev.Payload.(events.Response)
	if resp.Response != "response 1" {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if resp.Cached {
		t.Error("first exchange should not be cached")
	}
}

func TestTranscriptionContinuesDuringDispatch(t *testing.T) {
	llm := &fakeLLM{release: make(chan struct{})}
	engine := &fakeEngine{texts: []string{"tell me about go", "tell me about rust"}}
	fx := newFixtureLLM(t, engine, llm)

	fx.speakUtterance()
	waitEvent(t, fx.sub, events.TypeTranscription)

	// The first LLM call is parked. The next utterance must still be
	// transcribed; a slow model never stalls the segment queue.
	fx.speakUtterance()
	ev := waitEvent(t, fx.sub, events.TypeTranscription)
	if got := ev.Payload.(events.Transcription).Text; got != "tell me about rust" {
		t.Fatalf("second utterance not transcribed in flight, got %q", got)
	}

	// Releasing the model delivers both responses in submission order.
	close(llm.release)
	first := waitEvent(t, fx.sub, events.TypeResponse).Payload.(events.Response)
	if first.Response != "response 1" || first.Utterance != "tell me about go" {
		t.Errorf("unexpected first response: %+v", first)
	}
	second := waitEvent(t, fx.sub, events.TypeResponse).Payload.(events.Response)
	if second.Response != "response 2" || second.Utterance != "tell me about rust" {
		t.Errorf("unexpected second response: %+v", second)
	}
}

func TestMinWordFilter(t *testing.T) {
	fx := newFixture(t, &fakeEngine{texts: []string{"hmm"}})
	fx.speakUtterance()

	ev := waitEvent(t, fx.sub, events.TypeTranscription)
	tr := ev.Payload.(events.Transcription)
	if !tr.Filtered {
		t.Error("single-word utterance should be filtered")
	}

	// No response should follow a filtered transcription.
	select {
	case ev := <-fx.sub:
		if ev.Type == events.TypeResponse {
			t.Error("filtered utterance must not produce a response")
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestListeningToggleDiscardsSegment(t *testing.T) {
	fx := newFixture(t, &fakeEngine{})

	// Start an utterance, then toggle listening off mid-segment.
	for i := 0; i < 20; i++ {
		fx.source.frames <- speechFrame()
	}
	fx.pipeline.SetListening(false)
	waitEvent(t, fx.sub, events.TypeListening)

	// Silence that would normally seal the segment is ignored now.
	for i := 0; i < 55; i++ {
		fx.source.frames <- silenceFrame()
	}

	select {
	case ev := <-fx.sub:
		if ev.Type == events.TypeTranscription {
			t.Error("aborted segment must not be transcribed")
		}
	case <-time.After(300 * time.Millisecond):
	}

	// Toggling back on resumes normal operation.
	fx.pipeline.SetListening(true)
	fx.speakUtterance()
	waitEvent(t, fx.sub, events.TypeTranscription)
}

func TestDeviceLossPublishesError(t *testing.T) {
	fx := newFixture(t, &fakeEngine{})

	fx.source.errs <- audio.ErrDeviceUnavailable
	ev := waitEvent(t, fx.sub, events.TypeError)
	pe := ev.Payload.(events.PipelineError)
	if pe.Kind != "device_unavailable" {
		t.Errorf("want device_unavailable, got %s", pe.Kind)
	}

	// Frames arriving while paused are discarded.
	fx.speakUtterance()
	select {
	case ev := <-fx.sub:
		if ev.Type == events.TypeTranscription {
			t.Error("paused pipeline must not transcribe")
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSetMode(t *testing.T) {
	fx := newFixture(t, &fakeEngine{})

	if err := fx.pipeline.SetMode(templating.ModeMeeting); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if fx.pipeline.Mode() != templating.ModeMeeting {
		t.Errorf("want meeting mode, got %s", fx.pipeline.Mode())
	}
	waitEvent(t, fx.sub, events.TypeMode)

	if err := fx.pipeline.SetMode("bogus"); err == nil {
		t.Error("invalid mode should be rejected")
	}
}
