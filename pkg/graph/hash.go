package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"chat_timelines/pkg/model"
)

// ComputeDataHash produces a content hash over the raw session data.
// The background worker uses it to skip rebuilds when a file event did not
// actually change any message content.
func ComputeDataHash(sessions map[string][]model.ChatMessage) string {
	names := make([]string, 0, len(sessions))
	for name := range sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(sessions[name]))
		for _, msg := range sessions[name] {
			fmt.Fprintf(h, "%s\x1f%t\x1f%s\x1f%s\x1f%t\x00",
				msg.Name, msg.IsUser, msg.Mes, msg.BookmarkLink, msg.IsBookmark)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
