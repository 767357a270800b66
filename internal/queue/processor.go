package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/whistlegraph/dp1-feed/pkg/log"
)

// invalidFormatError is recorded when a fetched message fails shape
// validation. Such entries consume the normal retry budget and dead-letter
// after maxAttempts like any other failure.
const invalidFormatError = "Invalid message format"

// DefaultPollInterval is the processor tick interval.
const DefaultPollInterval = time.Second

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	// Target is the processing endpoint pending messages are POSTed to.
	Target string
	// Token, when set, is sent as a bearer credential.
	Token string
	// PollInterval is the tick interval; DefaultPollInterval when <= 0.
	PollInterval time.Duration
	// FetchLimit bounds entries per tick; DefaultFetchLimit when <= 0.
	FetchLimit int
	// Client overrides the HTTP client, e.g. to set timeouts.
	Client *http.Client
	Logger log.Logger
}

// Processor drives a Queue to completion: on every tick it fetches pending
// entries and dispatches each to the target endpoint sequentially, recording
// the outcome as an ack or a failure.
type Processor struct {
	queue    *Queue
	target   string
	token    string
	interval time.Duration
	limit    int
	client   *http.Client
	logger   log.Logger

	// tickMu is the re-entrancy guard: a tick that arrives while a batch is
	// still in flight is skipped entirely, bounding work to one batch.
	tickMu sync.Mutex

	mu   sync.Mutex
	stop chan struct{}
	done sync.WaitGroup
}

// NewProcessor creates a stopped Processor for q.
func NewProcessor(q *Queue, opts ProcessorOptions) *Processor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}
	return &Processor{
		queue:    q,
		target:   opts.Target,
		token:    opts.Token,
		interval: opts.PollInterval,
		limit:    opts.FetchLimit,
		client:   opts.Client,
		logger:   opts.Logger.With(log.Component("queue-processor"), log.Str("queue", q.Name())),
	}
}

// Start launches the polling loop. Starting a running processor is a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.done.Add(1)
	p.logger.Info("processor started", log.Dur("interval", p.interval), log.Int("fetch_limit", p.limit))
	go func() {
		defer p.done.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.Tick(context.Background())
			}
		}
	}()
}

// Stop halts the timer and waits for any in-flight batch to finish; its
// outcomes are still recorded. Stopping a stopped processor is a no-op.
func (p *Processor) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.done.Wait()
	p.logger.Info("processor stopped")
}

// Tick runs one poll cycle. If a previous batch is still being dispatched
// the tick is skipped entirely; the guard is released on every exit path.
func (p *Processor) Tick(ctx context.Context) {
	if !p.tickMu.TryLock() {
		p.logger.Debug("tick skipped, batch in flight")
		return
	}
	defer p.tickMu.Unlock()

	entries, err := p.queue.FetchPending(ctx, p.limit)
	if err != nil {
		// A failed poll must not stop the timer; the next tick retries.
		p.logger.Error("fetch pending failed", log.Err(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	p.logger.Debug("dispatching batch", log.Int("entries", len(entries)))
	for i := range entries {
		// Sequential on purpose: preserves per-entry ordering against the
		// endpoint and bounds concurrency to one in-flight request.
		p.processEntry(ctx, &entries[i])
	}
}

func (p *Processor) processEntry(ctx context.Context, e *Entry) {
	if _, ok := parseChangeEvent(e.Message); !ok {
		p.recordFailure(ctx, e, invalidFormatError)
		return
	}

	success, failMsg, err := p.dispatch(ctx, e.Message)
	switch {
	case err != nil:
		// Transport-level failure stays local to this entry.
		p.recordFailure(ctx, e, err.Error())
	case !success:
		p.recordFailure(ctx, e, failMsg)
	default:
		if err := p.queue.MarkProcessed(ctx, e.ID); err != nil {
			p.logger.Error("mark processed failed", log.Uint64("id", e.ID), log.Err(err))
		}
	}
}

// dispatch POSTs the raw message body to the target. It returns success for
// a 2xx response whose JSON body carries success=true, a failure message for
// HTTP- or result-level rejections, and err for transport-level problems.
func (p *Processor) dispatch(ctx context.Context, message string) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.target, strings.NewReader(message))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Sprintf("dispatch failed: status=%d body=%s", resp.StatusCode, bytes.TrimSpace(body)), nil
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, "", fmt.Errorf("malformed dispatch response: %w", err)
	}
	if !result.Success {
		return false, "Processing returned success=false", nil
	}
	return true, "", nil
}

func (p *Processor) recordFailure(ctx context.Context, e *Entry, msg string) {
	p.logger.Warn("entry failed",
		log.Uint64("id", e.ID),
		log.Int("attempts", int(e.Attempts)+1),
		log.Str("reason", msg),
	)
	if err := p.queue.MarkFailed(ctx, e.ID, msg); err != nil {
		p.logger.Error("mark failed errored", log.Uint64("id", e.ID), log.Err(err))
	}
}
