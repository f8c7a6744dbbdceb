package ws

import (
	"fmt"
	"strings"
)

// DirectRoomKey derives the room key for a 1:1 conversation. The key is
// order-independent so both participants land in the same room regardless of
// who connects first.
func DirectRoomKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("chat_%d_%d", a, b)
}

// GroupRoomKey derives the room key for a group from its immutable slug.
func GroupRoomKey(slug string) string {
	return "group_" + slug
}

func kindOf(roomKey string) string {
	if strings.HasPrefix(roomKey, "group_") {
		return "group"
	}
	return "chat"
}
