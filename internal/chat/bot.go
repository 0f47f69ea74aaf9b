package chat

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/amarchetti/teledoc/internal/bus"
	"go.uber.org/zap"
)

// pollTimeout is the long-poll timeout handed to the update loop, in seconds.
const pollTimeout = 30

// Bot is a Source backed by a bot token. Bot credentials receive new channel
// posts via long polling but cannot page history, so FetchBatch always
// reports an empty batch.
type Bot struct {
	token  string
	api    *tgbotapi.BotAPI
	cache  *InfoCache
	bus    *bus.Bus
	logger *zap.Logger
}

// NewBot creates a bot source. The network is not touched until Start.
func NewBot(token string, cache *InfoCache, b *bus.Bus, logger *zap.Logger) *Bot {
	return &Bot{
		token:  token,
		cache:  cache,
		bus:    b,
		logger: logger,
	}
}

// Start authenticates the bot token.
func (b *Bot) Start(_ context.Context) error {
	api, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	b.api = api
	b.logger.Info("chat client started", zap.String("bot", api.Self.UserName))
	return nil
}

// Stop tears the long-poll loop down. Safe after a failed Start.
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	b.logger.Info("chat client stopped")
}

// FetchBatch reports no history: bot credentials cannot read messages that
// arrived while the process was down.
func (b *Bot) FetchBatch(_ context.Context, channelID int64, _ int, minID int64) ([]*Message, error) {
	b.logger.Warn("bot credentials cannot page history, skipping catch-up",
		zap.Int64("channel_id", channelID),
		zap.Int64("min_id", minID))
	return nil, nil
}

// Subscribe receives channel posts for channelID and hands the parsed
// messages to fn. Runs until ctx is cancelled or the update stream closes.
func (b *Bot) Subscribe(ctx context.Context, channelID int64, fn func(*Message)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = []string{"channel_post"}
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("listening for channel posts", zap.Int64("channel_id", channelID))
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return &ConnectionError{Err: context.Canceled}
			}
			post := upd.ChannelPost
			if post == nil || post.Chat == nil || post.Chat.ID != channelID {
				continue
			}
			msg := b.parse(post)
			b.bus.Publish(bus.Event{
				Kind:      bus.KindChatMessage,
				Timestamp: time.Now(),
				Payload:   msg,
			})
			fn(msg)
		}
	}
}

// parse normalizes a raw channel post into a Message. Parsing is total:
// missing pieces become zero fields, never errors.
func (b *Bot) parse(post *tgbotapi.Message) *Message {
	info := ChannelInfo{
		ID:       post.Chat.ID,
		Name:     post.Chat.Title,
		Username: post.Chat.UserName,
	}
	b.cache.Put(info)

	m := &Message{
		ID:              int64(post.MessageID),
		Text:            post.Text,
		Date:            time.Unix(int64(post.Date), 0),
		ChannelID:       post.Chat.ID,
		ChannelName:     info.Name,
		ChannelUsername: info.Username,
		OriginalLink:    MessageLink(info, int64(post.MessageID)),
	}

	if fwd := post.ForwardFromChat; fwd != nil {
		fwdInfo := ChannelInfo{ID: fwd.ID, Name: fwd.Title, Username: fwd.UserName}
		b.cache.Put(fwdInfo)
		m.ForwardFromChannelID = fwd.ID
		m.ForwardFromName = fwdInfo.Name
		m.ForwardFromUsername = fwdInfo.Username
		if post.ForwardFromMessageID != 0 {
			m.ForwardMessageID = int64(post.ForwardFromMessageID)
			m.ForwardOriginalLink = MessageLink(fwdInfo, m.ForwardMessageID)
		}
	} else if from := post.ForwardFrom; from != nil {
		m.ForwardFromName = userDisplayName(from)
		m.ForwardFromUsername = from.UserName
	}
	if post.ForwardDate != 0 {
		m.ForwardOriginalDate = time.Unix(int64(post.ForwardDate), 0)
	}

	switch {
	case len(post.Photo) > 0:
		m.HasMedia, m.MediaKind = true, "Photo"
	case post.Video != nil:
		m.HasMedia, m.MediaKind = true, "Video"
	case post.Audio != nil:
		m.HasMedia, m.MediaKind = true, "Audio"
	case post.Voice != nil:
		m.HasMedia, m.MediaKind = true, "Voice"
	case post.Sticker != nil:
		m.HasMedia, m.MediaKind = true, "Sticker"
	case post.Document != nil:
		m.HasMedia, m.MediaKind = true, "Document"
	}
	if m.HasMedia && post.Caption != "" {
		m.MediaCaption = post.Caption
	}

	return m
}

func userDisplayName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
