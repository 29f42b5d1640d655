package livechat

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// RoomSet is the set of rooms the client considers itself joined to. It is
// the only record used to rejoin after a reconnect.
type RoomSet struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new.
func (s *RoomSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; ok {
		return false
	}
	s.rooms[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *RoomSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return false
	}
	delete(s.rooms, id)
	return true
}

func (s *RoomSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[id]
	return ok
}

// List returns the room ids in sorted order.
func (s *RoomSet) List() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (s *RoomSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *RoomSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.rooms)
}

// JoinRoom remembers roomID and, when connected, asks the server to join it.
// While offline the join is deferred to the next connect.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return NewError(ErrorBadRequest, "empty room id")
	}
	c.rooms.Add(roomID)
	return c.emitRoom(ctx, emitJoinRoom, roomID)
}

// LeaveRoom forgets roomID and, when connected, tells the server.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return NewError(ErrorBadRequest, "empty room id")
	}
	c.rooms.Remove(roomID)
	return c.emitRoom(ctx, emitLeaveRoom, roomID)
}

func (c *Client) emitRoom(ctx context.Context, event, roomID string) error {
	user := c.identity()
	err := c.emit(ctx, event, roomPayload{RoomID: roomID, UserID: user.ID, UserName: user.Name})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}
