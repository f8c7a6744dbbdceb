package models

// Frame types a client may send over a websocket connection. An absent type
// means a chat message.
const (
	FrameTypeMessage     = ""
	FrameTypeReadReceipt = "read_receipt"
)

// Frame is the inbound client->server payload.
type Frame struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
}
