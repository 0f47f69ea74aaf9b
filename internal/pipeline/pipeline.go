// Package pipeline owns the buffer of not-yet-confirmed messages and decides
// when and how they reach the document: size/timer/shutdown flush triggers,
// bounded retry with exponential backoff, degrade to plain text, and durable
// staging on total failure.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amarchetti/teledoc/internal/bus"
	"github.com/amarchetti/teledoc/internal/chat"
	"github.com/amarchetti/teledoc/internal/docs"
	"github.com/amarchetti/teledoc/internal/state"
	"github.com/amarchetti/teledoc/internal/status"
)

// Outcome describes how the most recent flush ended.
type Outcome string

const (
	// OutcomeNone: no flush has run, or the buffer was empty.
	OutcomeNone Outcome = "none"
	// OutcomeSuccess: the styled batch was confirmed written.
	OutcomeSuccess Outcome = "success"
	// OutcomeDegraded: the plain-text fallback was confirmed written.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeStaged: the write failed; the buffer is staged durably.
	OutcomeStaged Outcome = "staged"
	// OutcomeFailed: the write and the staging both failed; the buffer is
	// retained in memory for the next attempt.
	OutcomeFailed Outcome = "failed"
)

// Config tunes the delivery pipeline.
type Config struct {
	ChannelID     int64
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int           // attempts per write sub-phase (styled, plain)
	RetryBaseWait time.Duration // first backoff step; doubles per attempt
	RetryMaxWait  time.Duration // backoff cap
}

type command struct {
	msg   *chat.Message
	flush chan Outcome // non-nil marks an explicit flush request
}

// Pipeline buffers messages and delivers them in composed batches. The
// buffer and the state store are touched only from the run loop, so flushes
// are mutually exclusive by construction.
type Pipeline struct {
	cfg     Config
	editor  docs.Editor
	st      *state.DB
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	cmds   chan command
	cancel context.CancelFunc
	done   chan struct{}

	buffer []*chat.Message

	bufSize     atomic.Int64
	lastOutcome atomic.Value
}

// New creates a pipeline. Zero retry waits get sensible defaults.
func New(cfg Config, editor docs.Editor, st *state.DB, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Pipeline {
	if cfg.RetryBaseWait == 0 {
		cfg.RetryBaseWait = time.Second
	}
	if cfg.RetryMaxWait == 0 {
		cfg.RetryMaxWait = time.Minute
	}
	p := &Pipeline{
		cfg:     cfg,
		editor:  editor,
		st:      st,
		machine: machine,
		bus:     b,
		logger:  logger,
		cmds:    make(chan command, 256),
		done:    make(chan struct{}),
	}
	p.lastOutcome.Store(OutcomeNone)
	return p
}

// Start launches the run loop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	if p.machine.Current() == status.Booting {
		_ = p.machine.Transition(status.Idle)
	}
	go p.run(ctx)
}

// Stop requests shutdown and waits for the final flush to finish. A remote
// call already in flight completes or exhausts its retry budget; it is never
// aborted mid-write.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

// Ingest hands a message to the pipeline. Messages are flushed in ingestion
// order; anything accepted before Stop is included in the final flush. Only
// after Stop are messages dropped, with a log line.
func (p *Pipeline) Ingest(m *chat.Message) {
	select {
	case p.cmds <- command{msg: m}:
	case <-p.done:
		p.logger.Warn("message dropped, pipeline stopped", zap.Int64("message_id", m.ID))
	}
}

// FlushNow requests an immediate flush and returns its outcome. Commands are
// processed in order, so messages ingested before this call are included.
func (p *Pipeline) FlushNow(ctx context.Context) Outcome {
	reply := make(chan Outcome, 1)
	select {
	case p.cmds <- command{flush: reply}:
	case <-p.done:
		return p.LastOutcome()
	case <-ctx.Done():
		return p.LastOutcome()
	}
	select {
	case out := <-reply:
		return out
	case <-ctx.Done():
		return p.LastOutcome()
	}
}

// BufferSize reports how many messages are currently buffered.
func (p *Pipeline) BufferSize() int {
	return int(p.bufSize.Load())
}

// LastOutcome reports how the most recent flush ended.
func (p *Pipeline) LastOutcome() Outcome {
	return p.lastOutcome.Load().(Outcome)
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-p.cmds:
			if cmd.flush != nil {
				cmd.flush <- p.flush(ctx)
				continue
			}
			p.append(cmd.msg)
			if len(p.buffer) >= p.cfg.BatchSize {
				p.flush(ctx)
			}
		case <-ticker.C:
			if len(p.buffer) > 0 {
				p.logger.Debug("periodic flush", zap.Int("buffered", len(p.buffer)))
				p.flush(ctx)
			}
		case <-ctx.Done():
			// Shutdown: commands already accepted into the queue must not
			// be lost, so drain them into the buffer first. The final
			// flush must not be cut short by the same cancel.
			waiters := p.drainCmds()
			out := OutcomeNone
			if len(p.buffer) > 0 {
				p.logger.Info("final flush", zap.Int("buffered", len(p.buffer)))
				out = p.flush(context.Background())
			}
			for _, reply := range waiters {
				reply <- out
			}
			return
		}
	}
}

// drainCmds empties the command queue without blocking: queued messages join
// the buffer, queued flush requests are collected so the final flush can
// answer them.
func (p *Pipeline) drainCmds() []chan Outcome {
	var waiters []chan Outcome
	for {
		select {
		case cmd := <-p.cmds:
			if cmd.flush != nil {
				waiters = append(waiters, cmd.flush)
				continue
			}
			p.append(cmd.msg)
		default:
			return waiters
		}
	}
}

func (p *Pipeline) append(m *chat.Message) {
	if p.machine.Current() == status.Idle {
		_ = p.machine.Transition(status.Buffering)
	}
	p.buffer = append(p.buffer, m)
	p.bufSize.Store(int64(len(p.buffer)))
}

// flush delivers the buffer as one batch. An empty buffer is a no-op: no
// network call, no state transition.
func (p *Pipeline) flush(ctx context.Context) Outcome {
	if len(p.buffer) == 0 {
		return OutcomeNone
	}

	_ = p.machine.Transition(status.Flushing)

	batchID := uuid.NewString()
	n := len(p.buffer)
	logger := p.logger.With(zap.String("batch_id", batchID), zap.Int("messages", n))
	logger.Info("flushing buffer")

	styledErr := p.withRetry(ctx, logger, "styled", func(ctx context.Context) error {
		end, err := p.editor.EndIndex(ctx)
		if err != nil {
			return err
		}
		return p.editor.Apply(ctx, docs.ComposeBatch(p.buffer, end, time.Now()))
	})

	degraded := false
	finalErr := styledErr
	if styledErr != nil {
		_ = p.machine.Transition(status.Degraded)
		degraded = true
		logger.Warn("styled write rejected, falling back to plain text", zap.Error(styledErr))
		finalErr = p.withRetry(ctx, logger, "plain", func(ctx context.Context) error {
			end, err := p.editor.EndIndex(ctx)
			if err != nil {
				return err
			}
			return p.editor.Apply(ctx, docs.ComposePlain(p.buffer, end, time.Now()))
		})
	}

	var outcome Outcome
	if finalErr == nil {
		outcome = p.confirm(batchID, degraded, logger)
	} else {
		outcome = p.stage(batchID, finalErr, logger)
	}

	switch p.machine.Current() {
	case status.Flushing, status.Degraded:
		_ = p.machine.Transition(status.Idle)
	}
	p.lastOutcome.Store(outcome)
	p.bufSize.Store(int64(len(p.buffer)))
	return outcome
}

// confirm records a successful write: advance the watermark to the last
// delivered id, drop any staged record, bump counters, empty the buffer.
func (p *Pipeline) confirm(batchID string, degraded bool, logger *zap.Logger) Outcome {
	n := len(p.buffer)
	last := p.buffer[n-1]

	if err := p.st.SetWatermark(p.cfg.ChannelID, last.ID); err != nil {
		// A lost watermark advance means one harmless re-delivery on the
		// next startup, not message loss.
		logger.Error("watermark update failed", zap.Error(err))
	}
	if err := p.st.ClearPending(); err != nil {
		logger.Error("clearing staged batch failed", zap.Error(err))
	}
	if err := p.st.AddStats(n, false); err != nil {
		logger.Error("stats update failed", zap.Error(err))
	}

	p.buffer = nil
	logger.Info("buffer flushed", zap.Int64("watermark", last.ID), zap.Bool("degraded", degraded))
	p.bus.Publish(bus.Event{
		Kind:      bus.KindPipelineFlushed,
		Timestamp: time.Now(),
		Payload:   FlushResult{BatchID: batchID, Messages: n, Degraded: degraded},
	})
	if degraded {
		return OutcomeDegraded
	}
	return OutcomeSuccess
}

// stage persists the whole unflushed buffer for replay after restart. Only a
// confirmed staging write may empty the in-memory buffer; if the store
// itself is unwritable the buffer is retained for the next attempt.
func (p *Pipeline) stage(batchID string, cause error, logger *zap.Logger) Outcome {
	n := len(p.buffer)
	logger.Error("flush failed after retries", zap.Error(cause))

	if err := p.st.StagePending(batchID, p.buffer); err != nil {
		logger.Error("staging failed, retaining buffer in memory", zap.Error(err))
		_ = p.st.AddStats(0, true)
		p.bus.Publish(bus.Event{
			Kind:      bus.KindPipelineFailed,
			Timestamp: time.Now(),
			Payload:   FlushResult{BatchID: batchID, Messages: n},
		})
		return OutcomeFailed
	}

	if err := p.st.AddStats(0, true); err != nil {
		logger.Error("stats update failed", zap.Error(err))
	}
	p.buffer = nil
	logger.Warn("buffer staged for replay", zap.Int("messages", n))
	p.bus.Publish(bus.Event{
		Kind:      bus.KindPipelineStaged,
		Timestamp: time.Now(),
		Payload:   FlushResult{BatchID: batchID, Messages: n},
	})
	return OutcomeStaged
}

// withRetry runs fn up to MaxRetries times with exponential backoff, base
// multiplier 2, capped per-attempt wait. Cancellation is honored between
// attempts, never during one.
func (p *Pipeline) withRetry(ctx context.Context, logger *zap.Logger, phase string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.cfg.MaxRetries {
			break
		}
		wait := p.backoff(attempt)
		logger.Warn("write attempt failed",
			zap.String("phase", phase),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (p *Pipeline) backoff(attempt int) time.Duration {
	wait := p.cfg.RetryBaseWait << (attempt - 1)
	if wait > p.cfg.RetryMaxWait {
		wait = p.cfg.RetryMaxWait
	}
	return wait
}

// FlushResult is the payload for pipeline.* bus events.
type FlushResult struct {
	BatchID  string
	Messages int
	Degraded bool
}
