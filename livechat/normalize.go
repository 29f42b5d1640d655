package livechat

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// handleFrame normalizes one inbound frame and publishes the result. Frames
// are handled in arrival order on the socket's read goroutine.
func (c *Client) handleFrame(f Frame) {
	c.metrics.inbound(f.Event)

	switch f.Event {
	case eventNewMessage:
		var p newMessagePayload
		if !c.decode(f, &p) {
			return
		}
		msg := c.normalizeMessage(p)
		self := c.identity()
		c.emitBestEffort(context.Background(), emitMessageDelivered, deliveredPayload{
			MessageID:   msg.ID,
			RoomID:      msg.RoomID,
			UserID:      self.ID,
			DeliveredAt: msg.DeliveredAt,
		})
		c.publish(MessageEvent{Message: msg})

	case eventMessageDelivered:
		var p receiptPayload
		if !c.decode(f, &p) {
			return
		}
		c.publish(ReceiptEvent{
			MessageID: p.MessageID,
			RoomID:    p.RoomID,
			Status:    ReceiptDelivered,
			At:        c.firstTime(p.DeliveredAt),
			By:        p.UserID,
		})

	case eventMessageRead:
		var p receiptPayload
		if !c.decode(f, &p) {
			return
		}
		by := p.ReadBy
		if by == "" {
			by = p.UserID
		}
		c.publish(ReceiptEvent{
			MessageID: p.MessageID,
			RoomID:    p.RoomID,
			Status:    ReceiptRead,
			At:        c.firstTime(p.ReadAt),
			By:        by,
		})

	case eventUserJoined, eventUserLeft:
		var p memberPayload
		if !c.decode(f, &p) {
			return
		}
		c.publish(UserEvent{RoomID: p.RoomID, UserID: p.UserID, UserName: p.UserName, Joined: f.Event == eventUserJoined})

	case eventUserTyping:
		var p typingPayload
		if !c.decode(f, &p) {
			return
		}
		if p.UserID == "" || p.UserID == c.identity().ID {
			return
		}
		c.typing.update(TypingEvent{RoomID: p.RoomID, UserID: p.UserID, UserName: p.UserName, IsTyping: p.IsTyping})

	case eventRoomJoined, eventRoomLeft:
		var p roomIDPayload
		if !c.decode(f, &p) {
			return
		}
		kind := RoomJoined
		if f.Event == eventRoomLeft {
			kind = RoomLeft
		}
		c.publish(RoomEvent{Kind: kind, RoomID: p.RoomID})

	case eventRoomCreated:
		var p roomCreatedPayload
		if !c.decode(f, &p) {
			return
		}
		room := p.Room
		c.publish(RoomEvent{Kind: RoomCreated, RoomID: room.ID, Room: &room})

	case eventOnlineUsers:
		users, err := decodeOnlineUsers(f.Data)
		if err != nil {
			c.publish(ErrorEvent{Err: WrapError(ErrorSerialization, "failed to unmarshal onlineUsers event", err)})
			return
		}
		c.publish(OnlineUsersEvent{Users: users})

	case eventPresenceUpdate:
		var p remotePresencePayload
		if !c.decode(f, &p) {
			return
		}
		c.publish(PresenceEvent{Presence: Presence{UserID: p.UserID, Status: p.Status, LastSeen: c.firstTime(p.LastSeen)}})

	case eventError:
		perr := f.Error
		if perr == nil {
			perr = &Error{}
			if !c.decode(f, perr) {
				return
			}
		}
		c.logger.Warn("server error", map[string]any{"code": perr.Code, "msg": perr.Msg})
		c.publish(ErrorEvent{Err: FromProtocolError(perr)})

	default:
		c.logger.Debug("unhandled event", map[string]any{"event": f.Event})
	}
}

// normalizeMessage builds the canonical message. The timestamp comes from
// createdAt, then timestamp, then the local clock. Receipt by this live
// client counts as delivery.
func (c *Client) normalizeMessage(p newMessagePayload) Message {
	typ := p.Type
	if typ == "" {
		typ = MessageText
	}
	now := c.clock.Now()
	msg := Message{
		ID:         p.ID,
		RoomID:     p.RoomID,
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Content:    p.Content,
		Type:       typ,
		Metadata:   p.Metadata,
		Timestamp:  c.firstTime(p.CreatedAt, p.Timestamp),
	}
	msg.MarkDelivered(now, "")
	return msg
}

func (c *Client) firstTime(candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return *t
		}
	}
	return c.clock.Now()
}

func (c *Client) decode(f Frame, v any) bool {
	if err := UnmarshalData(f.Data, v); err != nil {
		c.publish(ErrorEvent{Err: WrapError(ErrorSerialization, "failed to unmarshal "+f.Event+" event", err)})
		return false
	}
	return true
}

// decodeOnlineUsers accepts either a list of user objects or a list of ids.
func decodeOnlineUsers(data json.RawMessage) ([]OnlineUser, error) {
	var users []OnlineUser
	if err := json.Unmarshal(data, &users); err == nil {
		return users, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	users = make([]OnlineUser, 0, len(ids))
	for _, id := range ids {
		users = append(users, OnlineUser{UserID: id, Status: PresenceOnline})
	}
	return users, nil
}
