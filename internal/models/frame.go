package models

// Типы кадров realtime-канала.
const (
	FrameMessage   = "message"
	FrameTyping    = "typing"
	FrameRead      = "read"
	FrameConnected = "connected"
)

// Frame — JSON-кадр realtime-канала (в обе стороны).
// Набор заполненных полей зависит от Type.
type Frame struct {
	Type        string `json:"type"`
	ID          int64  `json:"id,omitempty"`
	SenderID    int64  `json:"sender_id,omitempty"`
	RecipientID int64  `json:"recipient_id,omitempty"`
	Content     string `json:"content,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	MessageID   int64  `json:"message_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Read        bool   `json:"is_read,omitempty"`
}
