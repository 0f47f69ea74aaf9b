package docs

import (
	"strings"

	"github.com/amarchetti/teledoc/internal/chat"
)

// dateFormat is the timestamp layout used in every rendered section.
const dateFormat = "2006-01-02 15:04:05"

// messageSeparator closes every archived message.
var messageSeparator = strings.Repeat("═", 50)

// mediaMarkers maps a media kind to the marker shown on its line.
var mediaMarkers = map[string]string{
	"Photo":    "📷",
	"Video":    "📹",
	"Audio":    "🎵",
	"Document": "📄",
	"Voice":    "🎤",
	"Sticker":  "🎨",
}

// defaultMediaMarker covers media kinds without a dedicated marker.
const defaultMediaMarker = "📎"

// Layout is the rendered form of one message: the exact text to insert, the
// style operations over it, and the cursor immediately after it.
type Layout struct {
	Text string
	Ops  []Op
	End  int
}

// ComposeMessage lays one message out at cursor. The returned operations
// start with the insertion and are followed by the style and link updates
// over the freshly inserted text; End is always cursor plus the rendered
// text's rune length. Pure: a message with no body and no media still yields
// a header and separator.
func ComposeMessage(m *chat.Message, cursor int) Layout {
	var parts []string

	source := m.ForwardFromName
	if source == "" {
		source = m.ChannelName
	}
	if source == "" {
		source = "Unknown"
	}
	marker := "📢"
	if m.IsForward() {
		marker = "🔄"
	}
	headerLine := m.Date.Format(dateFormat) + " | " + marker + " " + source
	parts = append(parts, headerLine)

	var forwardLine, origDateLine string
	if m.IsForward() {
		forwardLine = "↪️ Forwarded from: " + m.ForwardFromName
		parts = append(parts, forwardLine)
		if !m.ForwardOriginalDate.IsZero() {
			origDateLine = "📆 Original: " + m.ForwardOriginalDate.Format(dateFormat)
			parts = append(parts, origDateLine)
		}
	}

	parts = append(parts, "")

	var mediaLine string
	if m.HasMedia {
		kind := m.MediaKind
		if kind == "" {
			kind = "Media"
		}
		mk, ok := mediaMarkers[kind]
		if !ok {
			mk = defaultMediaMarker
		}
		mediaLine = mk + " " + kind
		if m.MediaCaption != "" {
			mediaLine += ": " + m.MediaCaption
		}
		parts = append(parts, mediaLine)
	}

	if m.Text != "" {
		parts = append(parts, m.Text)
	}

	var viewLine, forwardViewLine string
	if m.OriginalLink != "" {
		parts = append(parts, "")
		viewLine = "🔗 View in Telegram"
		parts = append(parts, viewLine)
		if m.ForwardOriginalLink != "" {
			forwardViewLine = "🔗 View Original"
			parts = append(parts, forwardViewLine)
		}
	}

	parts = append(parts, "", messageSeparator, "")
	text := strings.Join(parts, "\n")

	ops := []Op{InsertText{At: cursor, Text: text}}

	// Walk the rendered sections, advancing by each line's rune length plus
	// one for its newline. Omitted sections contribute nothing.
	pos := cursor
	end := pos + runeLen(headerLine)
	ops = append(ops, UpdateStyle{Start: pos, End: end, Bold: true, FontSize: 12, Color: &colorHeader})
	pos = end + 1

	if forwardLine != "" {
		end = pos + runeLen(forwardLine)
		ops = append(ops, UpdateStyle{Start: pos, End: end, Italic: true, Color: &colorForward})
		pos = end + 1
		if origDateLine != "" {
			end = pos + runeLen(origDateLine)
			ops = append(ops, UpdateStyle{Start: pos, End: end, Italic: true, FontSize: 10, Color: &colorDate})
			pos = end + 1
		}
	}

	pos++ // blank line before content

	if mediaLine != "" {
		end = pos + runeLen(mediaLine)
		ops = append(ops, UpdateStyle{Start: pos, End: end, Bold: true, Color: &colorMedia})
		pos = end + 1
	}

	if m.Text != "" {
		for _, span := range ExtractLinks(m.Text) {
			ops = append(ops, UpdateLink{Start: pos + span.Start, End: pos + span.End, URL: span.URL})
		}
		pos += runeLen(m.Text) + 1
	}

	if m.OriginalLink != "" {
		pos++ // blank line before the link section
		end = pos + runeLen(viewLine)
		ops = append(ops, UpdateLink{Start: pos, End: end, URL: m.OriginalLink})
		pos = end + 1
		if forwardViewLine != "" {
			end = pos + runeLen(forwardViewLine)
			ops = append(ops, UpdateLink{Start: pos, End: end, URL: m.ForwardOriginalLink})
		}
	}

	return Layout{Text: text, Ops: ops, End: cursor + runeLen(text)}
}
