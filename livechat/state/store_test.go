package state

import (
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func msg(id, room, sender string, at time.Duration) livechat.Message {
	return livechat.Message{ID: id, RoomID: room, SenderID: sender, Content: id, Type: livechat.MessageText, Timestamp: t0.Add(at)}
}

func ids(list []livechat.Message) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStoreOrdersAndDedupsMessages(t *testing.T) {
	s := NewStore()
	s.Apply(livechat.MessageEvent{Message: msg("m2", "r1", "bob", 2*time.Second)})
	s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "bob", time.Second)})
	s.Apply(livechat.MessageEvent{Message: msg("m3", "r1", "bob", 2*time.Second)})
	if s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "bob", time.Second)}) {
		t.Fatal("duplicate message reported a change")
	}

	if got := ids(s.Messages("r1")); !equal(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("order = %v", got)
	}
	rooms := s.Snapshot().Rooms
	if len(rooms) != 1 || rooms[0].LastMessage == nil || rooms[0].LastMessage.ID != "m3" {
		t.Fatalf("rooms = %+v", rooms)
	}
	if rooms[0].UnreadCount != 3 {
		t.Fatalf("unread = %d, want 3", rooms[0].UnreadCount)
	}
}

func TestStoreReceiptsNeverRegress(t *testing.T) {
	s := NewStore()
	s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "u-me", 0)})

	s.Apply(livechat.ReceiptEvent{MessageID: "m1", RoomID: "r1", Status: livechat.ReceiptRead, At: t0.Add(time.Minute), By: "bob"})
	if s.Apply(livechat.ReceiptEvent{MessageID: "m1", RoomID: "r1", Status: livechat.ReceiptDelivered, At: t0.Add(2 * time.Minute), By: "bob"}) {
		t.Fatal("late delivery reported a change")
	}
	// The same message echoed again without receipt state.
	s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "u-me", 0)})

	m := s.Messages("r1")[0]
	if !m.IsRead || !m.IsDelivered || !m.ReadAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("message = %+v", m)
	}
	if s.Apply(livechat.ReceiptEvent{MessageID: "missing", RoomID: "r1", Status: livechat.ReceiptRead}) {
		t.Fatal("receipt for unknown message reported a change")
	}
}

func TestStoreUnreadCounts(t *testing.T) {
	s := NewStore()
	s.SetSelf("u-me")
	s.UpsertRoom(livechat.Room{ID: "r1", Name: "Physics"})
	s.UpsertRoom(livechat.Room{ID: "r2", Name: "Chemistry"})
	s.SetActiveRoom("r2")

	s.Apply(livechat.MessageEvent{Message: msg("a", "r1", "bob", 0)})
	s.Apply(livechat.MessageEvent{Message: msg("b", "r1", "u-me", time.Second)})
	s.Apply(livechat.MessageEvent{Message: msg("c", "r2", "bob", 2*time.Second)})

	rooms := s.Snapshot().Rooms
	if rooms[0].UnreadCount != 1 || rooms[1].UnreadCount != 0 {
		t.Fatalf("unread = %d/%d, want 1/0", rooms[0].UnreadCount, rooms[1].UnreadCount)
	}
	s.ResetUnread("r1")
	if got := s.Snapshot().Rooms[0].UnreadCount; got != 0 {
		t.Fatalf("unread after reset = %d", got)
	}

	// Server room lists do not wipe local counters.
	s.Apply(livechat.MessageEvent{Message: msg("d", "r1", "bob", 3*time.Second)})
	s.SetRooms([]livechat.Room{{ID: "r1", Name: "Physics 101"}})
	r := s.Snapshot().Rooms[0]
	if r.Name != "Physics 101" || r.UnreadCount != 1 || r.LastMessage == nil || r.LastMessage.ID != "d" {
		t.Fatalf("room = %+v", r)
	}
}

func TestStoreMergeHistory(t *testing.T) {
	s := NewStore()
	s.Apply(livechat.MessageEvent{Message: msg("m5", "r1", "bob", 5*time.Second)})
	s.MergeHistory("r1", []livechat.Message{
		msg("m3", "", "bob", 3*time.Second),
		msg("m4", "r1", "carol", 4*time.Second),
		msg("m5", "r1", "bob", 5*time.Second),
	})

	if got := ids(s.Messages("r1")); !equal(got, []string{"m3", "m4", "m5"}) {
		t.Fatalf("messages = %v", got)
	}
	if got := s.Oldest("r1"); got != "m3" {
		t.Fatalf("Oldest = %q", got)
	}
	if got := s.Snapshot().Rooms[0].UnreadCount; got != 1 {
		t.Fatalf("history changed unread to %d", got)
	}
}

func TestStoreTypingAndPresence(t *testing.T) {
	s := NewStore()
	s.Apply(livechat.TypingEvent{RoomID: "r1", UserID: "carol", UserName: "Carol", IsTyping: true})
	s.Apply(livechat.TypingEvent{RoomID: "r1", UserID: "bob", UserName: "Bob", IsTyping: true})
	if s.Apply(livechat.TypingEvent{RoomID: "r1", UserID: "bob", UserName: "Bob", IsTyping: true}) {
		t.Fatal("repeat typing reported a change")
	}
	typing := s.Snapshot().Typing["r1"]
	if len(typing) != 2 || typing[0].UserID != "bob" {
		t.Fatalf("typing = %+v", typing)
	}
	s.Apply(livechat.TypingEvent{RoomID: "r1", UserID: "bob", IsTyping: false})
	if got := s.Snapshot().Typing["r1"]; len(got) != 1 || got[0].UserName != "Carol" {
		t.Fatalf("typing = %+v", got)
	}
	s.Apply(livechat.StateEvent{OldState: livechat.StateConnected, NewState: livechat.StateDisconnected})
	if got := s.Snapshot().Typing; len(got) != 0 {
		t.Fatalf("typing survived disconnect: %+v", got)
	}

	s.Apply(livechat.OnlineUsersEvent{Users: []livechat.OnlineUser{{UserID: "bob", Status: livechat.PresenceOnline}}})
	s.Apply(livechat.PresenceEvent{Presence: livechat.Presence{UserID: "bob", Status: livechat.PresenceAway, LastSeen: t0}})
	s.Apply(livechat.PresenceEvent{Presence: livechat.Presence{UserID: "dan", Status: livechat.PresenceBusy, LastSeen: t0}})
	snap := s.Snapshot()
	if len(snap.OnlineUsers) != 2 || snap.OnlineUsers[0].Status != livechat.PresenceAway {
		t.Fatalf("online = %+v", snap.OnlineUsers)
	}
	s.Apply(livechat.PresenceEvent{Presence: livechat.Presence{UserID: "bob", Status: livechat.PresenceOffline, LastSeen: t0}})
	snap = s.Snapshot()
	if len(snap.OnlineUsers) != 1 || snap.OnlineUsers[0].UserID != "dan" || snap.Presence["bob"].Status != livechat.PresenceOffline {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStoreRoomsAndMembers(t *testing.T) {
	s := NewStore()
	s.Apply(livechat.RoomEvent{Kind: livechat.RoomCreated, RoomID: "r1", Room: &livechat.Room{ID: "r1", Name: "Art", Participants: []string{"bob"}}})
	s.Apply(livechat.UserEvent{RoomID: "r1", UserID: "carol", Joined: true})
	s.Apply(livechat.UserEvent{RoomID: "r1", UserID: "bob", Joined: false})
	s.Apply(livechat.RoomEvent{Kind: livechat.RoomJoined, RoomID: "r2"})
	s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "carol", 0)})

	snap := s.Snapshot()
	if len(snap.Rooms) != 2 || !equal(snap.Rooms[0].Participants, []string{"carol"}) || snap.Rooms[1].Name != "r2" {
		t.Fatalf("rooms = %+v", snap.Rooms)
	}

	s.Apply(livechat.RoomEvent{Kind: livechat.RoomLeft, RoomID: "r1"})
	snap = s.Snapshot()
	if len(snap.Rooms) != 1 || len(snap.Messages["r1"]) != 0 {
		t.Fatalf("left room still present: %+v", snap)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore()
	var got []Snapshot
	unsub := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	boom := errors.New("boom")
	s.Apply(livechat.ErrorEvent{Err: boom})
	s.Apply(livechat.StateEvent{NewState: livechat.StateDisconnected})
	unsub()
	unsub()
	s.Apply(livechat.StateEvent{NewState: livechat.StateConnecting})

	if len(got) != 1 || !errors.Is(got[0].LastError, boom) {
		t.Fatalf("snapshots = %+v", got)
	}

	// Snapshots are copies.
	s.Apply(livechat.MessageEvent{Message: msg("m1", "r1", "bob", 0)})
	snap := s.Snapshot()
	snap.Messages["r1"][0].Content = "edited"
	if s.Messages("r1")[0].Content != "m1" {
		t.Fatal("snapshot aliases store state")
	}
}
