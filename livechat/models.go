package livechat

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated identity the client connects as.
type User struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  string `json:"role,omitempty"`
}

// Validate checks that the user can be used for a session.
func (u User) Validate() error {
	return validateStruct(u)
}

// UserFromToken reads the identity claims (sub, name, email, role) of a
// bearer token. The signature is not verified; the server does that during
// the handshake.
func UserFromToken(token string) (User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return User{}, WrapError(ErrorInvalidConfig, "malformed token", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return User{}, NewError(ErrorInvalidConfig, "token has no subject")
	}
	u := User{ID: sub}
	u.Name, _ = claims["name"].(string)
	u.Email, _ = claims["email"].(string)
	u.Role, _ = claims["role"].(string)
	if u.Name == "" {
		u.Name = sub
	}
	return u, nil
}

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Message is the canonical form of a chat message.
type Message struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"roomId"`
	SenderID    string         `json:"senderId"`
	SenderName  string         `json:"senderName"`
	Content     string         `json:"content"`
	Type        MessageType    `json:"type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	IsDelivered bool           `json:"isDelivered"`
	DeliveredAt time.Time      `json:"deliveredAt,omitzero"`
	IsRead      bool           `json:"isRead"`
	ReadAt      time.Time      `json:"readAt,omitzero"`
	DeliveredTo []string       `json:"deliveredTo,omitempty"`
	ReadBy      []string       `json:"readBy,omitempty"`
}

// MarkDelivered records a delivery. It never clears a read state and keeps
// the earliest delivery time. It reports whether anything changed.
func (m *Message) MarkDelivered(at time.Time, by string) bool {
	changed := false
	if !m.IsDelivered {
		m.IsDelivered = true
		m.DeliveredAt = at
		changed = true
	}
	if by != "" && !slices.Contains(m.DeliveredTo, by) {
		m.DeliveredTo = append(m.DeliveredTo, by)
		changed = true
	}
	return changed
}

// MarkRead records a read, which implies delivery.
func (m *Message) MarkRead(at time.Time, by string) bool {
	changed := m.MarkDelivered(at, by)
	if !m.IsRead {
		m.IsRead = true
		m.ReadAt = at
		changed = true
	}
	if by != "" && !slices.Contains(m.ReadBy, by) {
		m.ReadBy = append(m.ReadBy, by)
		changed = true
	}
	return changed
}

// Clone returns a deep copy safe to hand to subscribers.
func (m Message) Clone() Message {
	m.DeliveredTo = slices.Clone(m.DeliveredTo)
	m.ReadBy = slices.Clone(m.ReadBy)
	if m.Metadata != nil {
		md := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}

// RoomType describes who can see a room.
type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
	RoomTypeDirect  RoomType = "direct"
)

// Room is a named channel with participants and history.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         RoomType  `json:"type,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	UnreadCount  int       `json:"unreadCount"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

// MessagePage is one page of room history, oldest message first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// PresenceStatus is a user's availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// Presence is a user's status as last reported.
type Presence struct {
	UserID   string         `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// OnlineUser is an entry of the server's online list.
type OnlineUser struct {
	UserID   string         `json:"userId"`
	UserName string         `json:"userName,omitempty"`
	Status   PresenceStatus `json:"status,omitempty"`
}
