package chat

import (
	"fmt"
	"strings"
)

// privateChannelPrefix is the marshalled form private channel ids carry on
// the wire; stripping it yields the id used in t.me/c/ deep links.
const privateChannelPrefix = "-100"

// MessageLink builds a deep link to a message in its origin channel.
// Public channels get the t.me/<username>/<id> form, private channels the
// t.me/c/<internal-id>/<id> form. Returns "" when no link can be built.
func MessageLink(info ChannelInfo, messageID int64) string {
	if messageID == 0 {
		return ""
	}
	if info.Username != "" {
		username := strings.TrimPrefix(info.Username, "@")
		return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
	}
	id := fmt.Sprintf("%d", info.ID)
	if strings.HasPrefix(id, privateChannelPrefix) {
		return fmt.Sprintf("https://t.me/c/%s/%d", id[len(privateChannelPrefix):], messageID)
	}
	return ""
}
