// Package dispatch serializes LLM requests. Utterances queue FIFO and
// a single worker holds at most one request in flight, so responses
// come back in submission order. Previously answered utterances are
// served from the cache without touching the conversation context.
package dispatch

import (
	"context"
	"time"

	"github.com/sai-assistant/sai/internal/cache"
	"github.com/sai-assistant/sai/internal/conversation"
	"github.com/sai-assistant/sai/internal/templating"
	"github.com/sai-assistant/sai/pkg/logger"
)

// Result is the terminal outcome of one submission.
type Result struct {
	Utterance string
	Mode      string
	Response  string
	Cached    bool
	Err       error
}

// Future resolves exactly once with the dispatch result.
type Future struct {
	done chan struct{}
	res  Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(res Result) *Future {
	f := newFuture()
	f.resolve(res)
	return f
}

func (f *Future) resolve(res Result) {
	f.res = res
	close(f.done)
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type request struct {
	utterance string
	mode      string
	future    *Future
}

// Config holds the dispatcher knobs.
type Config struct {
	QueueSize      int
	PromptPairs    int
	PromptMaxRunes int
}

// Dispatcher owns the request queue and the single worker.
type Dispatcher struct {
	client   LLMClient
	cache    *cache.Cache
	context  *conversation.Context
	renderer *templating.Renderer
	cfg      Config
	logger   *logger.Logger

	queue chan request
}

// New creates a dispatcher. Run must be called before Submit delivers
// anything.
func New(
	client LLMClient,
	responseCache *cache.Cache,
	convContext *conversation.Context,
	renderer *templating.Renderer,
	cfg Config,
	log *logger.Logger,
) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Dispatcher{
		client:   client,
		cache:    responseCache,
		context:  convContext,
		renderer: renderer,
		cfg:      cfg,
		logger:   log.Named("dispatcher"),
		queue:    make(chan request, cfg.QueueSize),
	}
}

// Run starts the worker and blocks until ctx is cancelled. Requests
// still queued at cancellation resolve with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx.Err())
			return ctx.Err()
		case req := <-d.queue:
			d.process(ctx, req)
		}
	}
}

// Submit enqueues an utterance. Cache hits resolve immediately without
// queueing or touching the conversation context. Returns ErrQueueFull
// when the queue is at capacity.
func (d *Dispatcher) Submit(utterance, mode string) (*Future, error) {
	key := cache.NewKey(utterance, mode)
	if cached, ok := d.cache.Get(key); ok {
		d.logger.Debug("Cache hit", logger.String("mode", mode))
		return resolvedFuture(Result{
			Utterance: utterance,
			Mode:      mode,
			Response:  cached,
			Cached:    true,
		}), nil
	}

	req := request{utterance: utterance, mode: mode, future: newFuture()}
	select {
	case d.queue <- req:
		return req.future, nil
	default:
		return nil, ErrQueueFull
	}
}

// process runs one request to completion. Only a success mutates the
// cache and conversation context.
func (d *Dispatcher) process(ctx context.Context, req request) {
	system := d.renderer.System(req.mode)

	recent := d.context.Recent(d.cfg.PromptPairs, d.cfg.PromptMaxRunes)
	user, err := d.renderer.User(req.utterance, recent)
	if err != nil {
		req.future.resolve(Result{Utterance: req.utterance, Mode: req.mode, Err: err})
		return
	}

	started := time.Now()
	response, err := d.client.Complete(ctx, system, user)
	if err != nil {
		d.logger.Warn("LLM request failed",
			logger.String("mode", req.mode),
			logger.String("kind", KindOf(err).String()),
			logger.Error(err))
		req.future.resolve(Result{Utterance: req.utterance, Mode: req.mode, Err: err})
		return
	}

	d.logger.Debug("LLM request completed",
		logger.String("mode", req.mode),
		logger.Duration("latency", time.Since(started)))

	d.cache.Put(cache.NewKey(req.utterance, req.mode), response)
	d.context.Append(conversation.Pair{
		Utterance: req.utterance,
		Response:  response,
		Mode:      req.mode,
		At:        time.Now().UTC(),
	})

	req.future.resolve(Result{
		Utterance: req.utterance,
		Mode:      req.mode,
		Response:  response,
	})
}

// drain fails every queued request with err.
func (d *Dispatcher) drain(err error) {
	for {
		select {
		case req := <-d.queue:
			req.future.resolve(Result{Utterance: req.utterance, Mode: req.mode, Err: err})
		default:
			return
		}
	}
}
