package chat

import "time"

// Message is a normalized channel post ready for archiving. It is created by
// the source's parsing step and never mutated afterwards; JSON tags exist so
// a failed batch can be staged durably and replayed after a restart.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
	ChannelID int64     `json:"channel_id"`

	ChannelName     string `json:"channel_name,omitempty"`
	ChannelUsername string `json:"channel_username,omitempty"`

	// Forward provenance, all zero when the post is original.
	ForwardFromChannelID int64     `json:"forward_from_channel_id,omitempty"`
	ForwardFromName      string    `json:"forward_from_name,omitempty"`
	ForwardFromUsername  string    `json:"forward_from_username,omitempty"`
	ForwardOriginalDate  time.Time `json:"forward_original_date,omitzero"`
	ForwardMessageID     int64     `json:"forward_message_id,omitempty"`

	HasMedia     bool   `json:"has_media,omitempty"`
	MediaKind    string `json:"media_kind,omitempty"`
	MediaCaption string `json:"media_caption,omitempty"`

	// Generated deep links into the origin platform.
	OriginalLink        string `json:"original_link,omitempty"`
	ForwardOriginalLink string `json:"forward_original_link,omitempty"`
}

// IsForward reports whether the message carries forward provenance.
func (m *Message) IsForward() bool {
	return m.ForwardFromName != ""
}
