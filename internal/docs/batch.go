package docs

import (
	"fmt"
	"strings"
	"time"

	"github.com/amarchetti/teledoc/internal/chat"
)

// batchRule frames the batch banner and footer.
var batchRule = strings.Repeat("─", 60)

// ComposeBatch assembles one atomic update for a batch of messages inserted
// at docEnd, the document's true end-of-content position: a styled banner,
// every message's layout with the cursor threaded message to message, and a
// styled completion footer. An empty batch composes to nil so callers can
// skip the network round trip entirely.
func ComposeBatch(msgs []*chat.Message, docEnd int, now time.Time) []Op {
	if len(msgs) == 0 {
		return nil
	}

	banner := batchBanner(len(msgs), now)
	ops := []Op{
		InsertText{At: docEnd, Text: banner},
		UpdateStyle{Start: docEnd, End: docEnd + runeLen(banner), Bold: true, FontSize: 12, Color: &colorBatchHeader},
	}

	cursor := docEnd + runeLen(banner)
	for _, m := range msgs {
		layout := ComposeMessage(m, cursor)
		ops = append(ops, layout.Ops...)
		cursor = layout.End
	}

	footer := batchFooter(now)
	ops = append(ops,
		InsertText{At: cursor, Text: footer},
		UpdateStyle{Start: cursor, End: cursor + runeLen(footer), Italic: true, FontSize: 10, Color: &colorBatchFooter},
	)
	return ops
}

// ComposePlain renders the same batch as a single unstyled insertion. This is
// the degrade path taken when the remote rejects the styled update.
func ComposePlain(msgs []*chat.Message, docEnd int, now time.Time) []Op {
	if len(msgs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(batchBanner(len(msgs), now))
	for _, m := range msgs {
		// Layout positions are irrelevant here; only the text is kept.
		sb.WriteString(ComposeMessage(m, docEnd).Text)
	}
	sb.WriteString(batchFooter(now))

	return []Op{InsertText{At: docEnd, Text: sb.String()}}
}

func batchBanner(count int, now time.Time) string {
	return fmt.Sprintf("\n📦 BATCH UPDATE - %s - %d messages\n%s\n",
		now.Format(dateFormat), count, batchRule)
}

func batchFooter(now time.Time) string {
	return fmt.Sprintf("\n%s\n✅ Batch completed at %s\n\n",
		batchRule, now.Format("15:04:05"))
}
