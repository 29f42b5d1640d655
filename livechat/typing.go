package livechat

import (
	"context"
	"slices"
	"sync"
	"time"
)

type typingKey struct {
	roomID string
	userID string
}

type typingEntry struct {
	userName string
	timer    Timer
	seq      uint64
}

// typingTracker holds remote typing indicators. Each (room, user) entry
// expires after timeout unless refreshed; expiry is published as
// IsTyping=false.
type typingTracker struct {
	mu      sync.Mutex
	clock   Clock
	timeout time.Duration
	entries map[typingKey]*typingEntry
	seq     uint64
	publish func(Event)
}

func newTypingTracker(clock Clock, timeout time.Duration, publish func(Event)) *typingTracker {
	return &typingTracker{
		clock:   clock,
		timeout: timeout,
		entries: make(map[typingKey]*typingEntry),
		publish: publish,
	}
}

// update applies a remote typing signal. Only idle/typing transitions are
// published; a refresh just restarts the expiry timer.
func (t *typingTracker) update(ev TypingEvent) {
	key := typingKey{roomID: ev.RoomID, userID: ev.UserID}

	t.mu.Lock()
	e, existed := t.entries[key]
	if !ev.IsTyping {
		if existed {
			e.timer.Stop()
			delete(t.entries, key)
		}
		t.mu.Unlock()
		if existed {
			ev.UserName = e.userName
			t.publish(ev)
		}
		return
	}
	if existed {
		e.timer.Stop()
	} else {
		e = &typingEntry{userName: ev.UserName}
		t.entries[key] = e
	}
	t.seq++
	seq := t.seq
	e.seq = seq
	e.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(key, seq) })
	t.mu.Unlock()

	if !existed {
		t.publish(ev)
	}
}

func (t *typingTracker) expire(key typingKey, seq uint64) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.seq != seq {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.mu.Unlock()

	t.publish(TypingEvent{RoomID: key.roomID, UserID: key.userID, UserName: e.userName, IsTyping: false})
}

// clear stops every expiry timer without publishing and returns how many
// entries were dropped.
func (t *typingTracker) clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	for k, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, k)
	}
	return n
}

func (t *typingTracker) active(roomID string) []string {
	t.mu.Lock()
	var users []string
	for k := range t.entries {
		if k.roomID == roomID {
			users = append(users, k.userID)
		}
	}
	t.mu.Unlock()
	slices.Sort(users)
	return users
}

// StartTyping tells the room the local user is composing. Callers driving
// this from keystrokes should rate-limit upstream.
func (c *Client) StartTyping(ctx context.Context, roomID string) {
	user := c.identity()
	c.emitBestEffort(ctx, emitTyping, roomPayload{RoomID: roomID, UserID: user.ID, UserName: user.Name})
}

// StopTyping tells the room the local user stopped composing.
func (c *Client) StopTyping(ctx context.Context, roomID string) {
	user := c.identity()
	c.emitBestEffort(ctx, emitStopTyping, roomPayload{RoomID: roomID, UserID: user.ID, UserName: user.Name})
}
