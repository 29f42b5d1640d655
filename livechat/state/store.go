// Package state keeps application chat state fed by a livechat.Client and
// exposes it to UI code through snapshots.
package state

import (
	"cmp"
	"slices"
	"sync"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

// TypingUser is a remote user currently composing in a room.
type TypingUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Snapshot is an immutable copy of the store.
type Snapshot struct {
	Status      livechat.ConnectionState
	Rooms       []livechat.Room
	Messages    map[string][]livechat.Message
	Typing      map[string][]TypingUser
	OnlineUsers []livechat.OnlineUser
	Presence    map[string]livechat.Presence
	ActiveRoom  string
	LastError   error
}

// Store is the shared chat state. Apply is the only mutation path for
// inbound events; the remaining setters serve locally initiated changes.
// Every change notifies subscribers with a fresh Snapshot.
type Store struct {
	mu         sync.RWMutex
	self       string
	status     livechat.ConnectionState
	rooms      map[string]*livechat.Room
	roomOrder  []string
	messages   map[string][]livechat.Message
	typing     map[string]map[string]string
	online     []livechat.OnlineUser
	presence   map[string]livechat.Presence
	activeRoom string
	lastErr    error

	subMu  sync.RWMutex
	nextID int
	subs   []storeSub
}

type storeSub struct {
	id int
	fn func(Snapshot)
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]*livechat.Room),
		messages: make(map[string][]livechat.Message),
		typing:   make(map[string]map[string]string),
		presence: make(map[string]livechat.Presence),
	}
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, storeSub{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify() {
	s.subMu.RLock()
	subs := s.subs
	s.subMu.RUnlock()
	if len(subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, sub := range subs {
		sub.fn(snap)
	}
}

// mutate runs fn under the write lock and notifies when it reports a change.
func (s *Store) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// Apply folds one client event into the store and reports whether anything
// changed.
func (s *Store) Apply(ev livechat.Event) bool {
	return s.mutate(func() bool {
		switch e := ev.(type) {
		case livechat.StateEvent:
			return s.applyState(e)
		case livechat.MessageEvent:
			return s.addMessage(e.Message)
		case livechat.ReceiptEvent:
			return s.applyReceipt(e)
		case livechat.UserEvent:
			return s.applyMember(e)
		case livechat.TypingEvent:
			return s.applyTyping(e)
		case livechat.RoomEvent:
			return s.applyRoom(e)
		case livechat.OnlineUsersEvent:
			s.online = slices.Clone(e.Users)
			return true
		case livechat.PresenceEvent:
			return s.applyPresence(e.Presence)
		case livechat.ErrorEvent:
			s.lastErr = e.Err
			return true
		}
		return false
	})
}

func (s *Store) applyState(e livechat.StateEvent) bool {
	changed := s.status != e.NewState
	s.status = e.NewState
	if e.Error != nil {
		s.lastErr = e.Error
		changed = true
	}
	if e.NewState == livechat.StateDisconnected && len(s.typing) > 0 {
		clear(s.typing)
		changed = true
	}
	return changed
}

// addMessage inserts msg in timestamp order. A message already present by id
// only absorbs receipt progress, so delivery state never regresses.
func (s *Store) addMessage(msg livechat.Message) bool {
	list := s.messages[msg.RoomID]
	if i := indexOf(list, msg.ID); i >= 0 {
		cur := &list[i]
		changed := false
		if msg.IsDelivered {
			changed = cur.MarkDelivered(msg.DeliveredAt, "") || changed
		}
		if msg.IsRead {
			changed = cur.MarkRead(msg.ReadAt, "") || changed
		}
		return changed
	}

	msg = msg.Clone()
	pos, _ := slices.BinarySearchFunc(list, msg, func(a, b livechat.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		// equal timestamps keep arrival order
		return -1
	})
	s.messages[msg.RoomID] = slices.Insert(list, pos, msg)

	room := s.ensureRoom(msg.RoomID)
	if room.LastMessage == nil || !msg.Timestamp.Before(room.LastMessage.Timestamp) {
		last := msg.Clone()
		room.LastMessage = &last
	}
	if msg.SenderID != s.self && msg.RoomID != s.activeRoom && !msg.IsRead {
		room.UnreadCount++
	}
	return true
}

func (s *Store) applyReceipt(e livechat.ReceiptEvent) bool {
	list := s.messages[e.RoomID]
	i := indexOf(list, e.MessageID)
	if i < 0 {
		return false
	}
	if e.Status == livechat.ReceiptRead {
		return list[i].MarkRead(e.At, e.By)
	}
	return list[i].MarkDelivered(e.At, e.By)
}

func (s *Store) applyMember(e livechat.UserEvent) bool {
	room, ok := s.rooms[e.RoomID]
	if !ok {
		return false
	}
	has := slices.Contains(room.Participants, e.UserID)
	switch {
	case e.Joined && !has:
		room.Participants = append(room.Participants, e.UserID)
		return true
	case !e.Joined && has:
		room.Participants = slices.DeleteFunc(room.Participants, func(id string) bool { return id == e.UserID })
		return true
	}
	return false
}

func (s *Store) applyTyping(e livechat.TypingEvent) bool {
	users := s.typing[e.RoomID]
	if !e.IsTyping {
		if _, ok := users[e.UserID]; !ok {
			return false
		}
		delete(users, e.UserID)
		if len(users) == 0 {
			delete(s.typing, e.RoomID)
		}
		return true
	}
	if users == nil {
		users = make(map[string]string)
		s.typing[e.RoomID] = users
	}
	if name, ok := users[e.UserID]; ok && name == e.UserName {
		return false
	}
	users[e.UserID] = e.UserName
	return true
}

func (s *Store) applyRoom(e livechat.RoomEvent) bool {
	switch e.Kind {
	case livechat.RoomCreated:
		if e.Room == nil {
			return false
		}
		s.upsertRoom(*e.Room)
		return true
	case livechat.RoomJoined:
		if _, ok := s.rooms[e.RoomID]; ok {
			return false
		}
		s.ensureRoom(e.RoomID)
		return true
	case livechat.RoomLeft:
		return s.removeRoom(e.RoomID)
	}
	return false
}

func (s *Store) applyPresence(p livechat.Presence) bool {
	s.presence[p.UserID] = p
	i := slices.IndexFunc(s.online, func(u livechat.OnlineUser) bool { return u.UserID == p.UserID })
	switch {
	case p.Status == livechat.PresenceOffline && i >= 0:
		s.online = slices.Delete(slices.Clone(s.online), i, i+1)
	case p.Status != livechat.PresenceOffline && i >= 0:
		s.online = slices.Clone(s.online)
		s.online[i].Status = p.Status
	case p.Status != livechat.PresenceOffline:
		s.online = append(slices.Clone(s.online), livechat.OnlineUser{UserID: p.UserID, Status: p.Status})
	}
	return true
}

func (s *Store) ensureRoom(id string) *livechat.Room {
	if r, ok := s.rooms[id]; ok {
		return r
	}
	r := &livechat.Room{ID: id, Name: id}
	s.rooms[id] = r
	s.roomOrder = append(s.roomOrder, id)
	return r
}

// upsertRoom replaces server-owned fields and keeps local unread and last
// message when the incoming room has none.
func (s *Store) upsertRoom(room livechat.Room) {
	cur, ok := s.rooms[room.ID]
	if !ok {
		room.Participants = slices.Clone(room.Participants)
		s.rooms[room.ID] = &room
		s.roomOrder = append(s.roomOrder, room.ID)
		return
	}
	if room.LastMessage == nil {
		room.LastMessage = cur.LastMessage
	}
	if room.UnreadCount == 0 {
		room.UnreadCount = cur.UnreadCount
	}
	room.Participants = slices.Clone(room.Participants)
	*cur = room
}

func (s *Store) removeRoom(id string) bool {
	if _, ok := s.rooms[id]; !ok {
		return false
	}
	delete(s.rooms, id)
	delete(s.messages, id)
	delete(s.typing, id)
	s.roomOrder = slices.DeleteFunc(s.roomOrder, func(r string) bool { return r == id })
	if s.activeRoom == id {
		s.activeRoom = ""
	}
	return true
}

// SetSelf records the local user so own messages are not counted unread.
func (s *Store) SetSelf(userID string) {
	s.mu.Lock()
	s.self = userID
	s.mu.Unlock()
}

// SetRooms merges a server room list into the store.
func (s *Store) SetRooms(rooms []livechat.Room) {
	s.mutate(func() bool {
		for _, r := range rooms {
			s.upsertRoom(r)
		}
		return len(rooms) > 0
	})
}

// UpsertRoom adds or updates one room.
func (s *Store) UpsertRoom(room livechat.Room) {
	s.mutate(func() bool {
		s.upsertRoom(room)
		return true
	})
}

// RemoveRoom drops a room with its messages and typing users.
func (s *Store) RemoveRoom(id string) {
	s.mutate(func() bool { return s.removeRoom(id) })
}

// MergeHistory adds a page of older messages. Messages already present are
// kept as they are apart from receipt progress. History does not move
// unread counts.
func (s *Store) MergeHistory(roomID string, msgs []livechat.Message) {
	s.mutate(func() bool {
		room := s.ensureRoom(roomID)
		unread := room.UnreadCount
		changed := false
		for _, m := range msgs {
			if m.RoomID == "" {
				m.RoomID = roomID
			}
			changed = s.addMessage(m) || changed
		}
		room.UnreadCount = unread
		return changed
	})
}

// SetActiveRoom marks roomID as the one on screen and clears its unread
// count.
func (s *Store) SetActiveRoom(roomID string) {
	s.mutate(func() bool {
		s.activeRoom = roomID
		if r, ok := s.rooms[roomID]; ok {
			r.UnreadCount = 0
		}
		return true
	})
}

// ResetUnread zeroes the unread count of roomID.
func (s *Store) ResetUnread(roomID string) {
	s.mutate(func() bool {
		r, ok := s.rooms[roomID]
		if !ok || r.UnreadCount == 0 {
			return false
		}
		r.UnreadCount = 0
		return true
	})
}

// MarkReadLocally records that the local user read a message.
func (s *Store) MarkReadLocally(roomID, messageID string) {
	s.mutate(func() bool {
		list := s.messages[roomID]
		i := indexOf(list, messageID)
		if i < 0 {
			return false
		}
		return list[i].MarkRead(list[i].Timestamp, s.self)
	})
}

// Status returns the last known connection state.
func (s *Store) Status() livechat.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Messages returns a copy of roomID's messages in timestamp order.
func (s *Store) Messages(roomID string) []livechat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages[roomID])
}

// Oldest returns the id of the earliest loaded message in roomID.
func (s *Store) Oldest(roomID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if list := s.messages[roomID]; len(list) > 0 {
		return list[0].ID
	}
	return ""
}

// Snapshot copies the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:      s.status,
		Rooms:       make([]livechat.Room, 0, len(s.roomOrder)),
		Messages:    make(map[string][]livechat.Message, len(s.messages)),
		Typing:      make(map[string][]TypingUser, len(s.typing)),
		OnlineUsers: slices.Clone(s.online),
		Presence:    make(map[string]livechat.Presence, len(s.presence)),
		ActiveRoom:  s.activeRoom,
		LastError:   s.lastErr,
	}
	for _, id := range s.roomOrder {
		r := *s.rooms[id]
		r.Participants = slices.Clone(r.Participants)
		if r.LastMessage != nil {
			last := r.LastMessage.Clone()
			r.LastMessage = &last
		}
		snap.Rooms = append(snap.Rooms, r)
	}
	for id, list := range s.messages {
		snap.Messages[id] = cloneMessages(list)
	}
	for room, users := range s.typing {
		list := make([]TypingUser, 0, len(users))
		for id, name := range users {
			list = append(list, TypingUser{UserID: id, UserName: name})
		}
		slices.SortFunc(list, func(a, b TypingUser) int { return cmp.Compare(a.UserID, b.UserID) })
		snap.Typing[room] = list
	}
	for id, p := range s.presence {
		snap.Presence[id] = p
	}
	return snap
}

func indexOf(list []livechat.Message, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(list, func(m livechat.Message) bool { return m.ID == id })
}

func cloneMessages(list []livechat.Message) []livechat.Message {
	out := make([]livechat.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}
