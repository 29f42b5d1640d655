package livechat

import "time"

// Event is any normalized event published by the client. The concrete types
// are the *Event structs in this package.
type Event interface {
	eventName() string
}

// MessageEvent is emitted for every normalized inbound message.
type MessageEvent struct {
	Message Message
}

// ReceiptStatus is the acknowledgement carried by a ReceiptEvent.
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// ReceiptEvent reports that a message was delivered to or read by someone.
type ReceiptEvent struct {
	MessageID string
	RoomID    string
	Status    ReceiptStatus
	At        time.Time
	By        string
}

// UserEvent is emitted when a user joins or leaves a room.
type UserEvent struct {
	RoomID   string
	UserID   string
	UserName string
	Joined   bool
}

// TypingEvent reports a remote user's typing state. Expiry of a typing
// indicator is reported as IsTyping=false.
type TypingEvent struct {
	RoomID   string
	UserID   string
	UserName string
	IsTyping bool
}

// RoomEvent is emitted when the server confirms a join or leave, or announces
// a new room.
type RoomEvent struct {
	Kind   RoomEventKind
	RoomID string
	Room   *Room
}

// RoomEventKind distinguishes RoomEvent variants.
type RoomEventKind string

const (
	RoomJoined  RoomEventKind = "joined"
	RoomLeft    RoomEventKind = "left"
	RoomCreated RoomEventKind = "created"
)

// OnlineUsersEvent carries the server's list of connected users.
type OnlineUsersEvent struct {
	Users []OnlineUser
}

// PresenceEvent carries another user's presence.
type PresenceEvent struct {
	Presence Presence
}

// ErrorEvent carries a server protocol error or a client-side failure that
// was absorbed rather than returned.
type ErrorEvent struct {
	Err error
}

func (MessageEvent) eventName() string     { return eventNewMessage }
func (ReceiptEvent) eventName() string     { return "receipt" }
func (UserEvent) eventName() string        { return "user" }
func (TypingEvent) eventName() string      { return eventUserTyping }
func (RoomEvent) eventName() string        { return "room" }
func (OnlineUsersEvent) eventName() string { return eventOnlineUsers }
func (PresenceEvent) eventName() string    { return eventPresenceUpdate }
func (ErrorEvent) eventName() string       { return eventError }
