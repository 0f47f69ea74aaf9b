// Package backfill replays work left over from a previous run: first the
// staged pending batch, then any messages published after the watermark.
package backfill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amarchetti/teledoc/internal/bus"
	"github.com/amarchetti/teledoc/internal/chat"
	"github.com/amarchetti/teledoc/internal/pipeline"
	"github.com/amarchetti/teledoc/internal/state"
)

// Coordinator drives startup recovery. Best-effort by design: a failed
// catch-up fetch is logged and live listening proceeds anyway.
type Coordinator struct {
	st         *state.DB
	pipe       *pipeline.Pipeline
	src        chat.Source
	channelID  int64
	fetchLimit int
	bus        *bus.Bus
	logger     *zap.Logger
}

// New creates a coordinator for one channel.
func New(st *state.DB, pipe *pipeline.Pipeline, src chat.Source, channelID int64, fetchLimit int, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		st:         st,
		pipe:       pipe,
		src:        src,
		channelID:  channelID,
		fetchLimit: fetchLimit,
		bus:        b,
		logger:     logger,
	}
}

// Run replays the staged batch (if any), then catches up from the watermark.
// Must complete before live events are subscribed so replayed messages keep
// their original order.
func (c *Coordinator) Run(ctx context.Context) {
	c.replayPending(ctx)
	c.catchUp(ctx)
	c.bus.Publish(bus.Event{Kind: bus.KindBackfillDone, Timestamp: time.Now()})
}

// replayPending re-buffers the staged batch from the previous run, in its
// original order, and attempts one flush before anything else happens.
func (c *Coordinator) replayPending(ctx context.Context) {
	pending, err := c.st.Pending()
	if err != nil {
		c.logger.Error("reading staged batch failed", zap.Error(err))
		return
	}
	if pending == nil {
		return
	}

	c.logger.Info("replaying staged batch from previous run",
		zap.String("batch_id", pending.BatchID),
		zap.Int("messages", len(pending.Messages)),
		zap.Time("staged_at", pending.StagedAt))

	for _, m := range pending.Messages {
		c.pipe.Ingest(m)
	}
	outcome := c.pipe.FlushNow(ctx)
	c.logger.Info("staged batch replay finished", zap.String("outcome", string(outcome)))
}

// catchUp fetches messages missed while the process was down and feeds them
// through the normal ingestion path, oldest first. No watermark means a
// fresh start with no historical backfill.
func (c *Coordinator) catchUp(ctx context.Context) {
	watermark, ok, err := c.st.Watermark(c.channelID)
	if err != nil {
		c.logger.Error("reading watermark failed", zap.Error(err))
		return
	}
	if !ok {
		c.logger.Info("no watermark found, starting fresh")
		return
	}

	c.logger.Info("catching up from watermark", zap.Int64("watermark", watermark))
	msgs, err := c.src.FetchBatch(ctx, c.channelID, c.fetchLimit, watermark)
	if err != nil {
		c.logger.Error("catch-up fetch failed", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		c.logger.Info("no missed messages")
		return
	}

	c.logger.Info("found missed messages", zap.Int("count", len(msgs)))
	for _, m := range msgs {
		c.pipe.Ingest(m)
	}
	outcome := c.pipe.FlushNow(ctx)
	c.logger.Info("catch-up finished", zap.String("outcome", string(outcome)))
}
