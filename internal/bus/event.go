package bus

import "time"

// Event is a domain event published on the in-process bus. Kind uses a
// dotted namespace so subscribers can filter by prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the archiver. Advisory only; nothing makes
// correctness decisions from bus traffic.
const (
	KindChatMessage     = "chat.message"
	KindPipelineFlushed = "pipeline.flushed"
	KindPipelineFailed  = "pipeline.flush_failed"
	KindPipelineStaged  = "pipeline.staged"
	KindBackfillDone    = "backfill.done"
	KindStatusChanged   = "status.changed"
)
