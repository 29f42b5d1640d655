package livechat

import (
	"time"

	"github.com/goccy/go-json"
)

// Outbound event names (client -> server).
const (
	emitAuthenticate     = "authenticate"
	emitJoinRoom         = "joinRoom"
	emitLeaveRoom        = "leaveRoom"
	emitSendMessage      = "sendMessage"
	emitTyping           = "typing"
	emitStopTyping       = "stopTyping"
	emitMessageDelivered = "messageDelivered"
	emitMessageRead      = "messageRead"
	emitRoomRead         = "roomRead"
	emitPresenceUpdate   = "presenceUpdate"
)

// Inbound event names (server -> client).
const (
	eventNewMessage       = "newMessage"
	eventMessageDelivered = "messageDelivered"
	eventMessageRead      = "messageRead"
	eventUserJoined       = "userJoined"
	eventUserLeft         = "userLeft"
	eventUserTyping       = "userTyping"
	eventRoomJoined       = "roomJoined"
	eventRoomLeft         = "roomLeft"
	eventRoomCreated      = "roomCreated"
	eventOnlineUsers      = "onlineUsers"
	eventPresenceUpdate   = "presenceUpdate"
	eventError            = "error"
)

// Frame is the envelope used in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// NewFrame marshals data into a Frame for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, WrapError(ErrorSerialization, "failed to marshal "+event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// Error describes a protocol error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// UnmarshalData decodes RawMessage into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}

// Outbound payloads.

type authenticatePayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail,omitempty"`
	UserRole  string `json:"userRole,omitempty"`
}

type roomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type deliveredPayload struct {
	MessageID   string    `json:"messageId"`
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type readPayload struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type roomReadPayload struct {
	RoomID string    `json:"roomId"`
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type presencePayload struct {
	UserID   string         `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// OutgoingMessage is the envelope handed to the transport by SendMessage.
// It is not a server acknowledgement; the persisted message arrives later as
// a MessageEvent.
type OutgoingMessage struct {
	ClientID   string         `json:"clientId"`
	RoomID     string         `json:"roomId"`
	SenderID   string         `json:"senderId"`
	SenderName string         `json:"senderName"`
	Content    string         `json:"content"`
	Type       MessageType    `json:"type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Inbound payloads, in the loose shapes the server sends.

type newMessagePayload struct {
	ID         string         `json:"id"`
	RoomID     string         `json:"roomId"`
	SenderID   string         `json:"senderId"`
	SenderName string         `json:"senderName"`
	Content    string         `json:"content"`
	Type       MessageType    `json:"type"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  *time.Time     `json:"createdAt"`
	Timestamp  *time.Time     `json:"timestamp"`
}

type receiptPayload struct {
	MessageID   string     `json:"messageId"`
	RoomID      string     `json:"roomId"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`
	ReadBy      string     `json:"readBy"`
	UserID      string     `json:"userId"`
}

type memberPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type roomIDPayload struct {
	RoomID string `json:"roomId"`
}

type roomCreatedPayload struct {
	Room Room `json:"room"`
}

type remotePresencePayload struct {
	UserID   string         `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"lastSeen"`
}
