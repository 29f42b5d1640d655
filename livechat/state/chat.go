package state

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

// DefaultTypingInterval is the minimum gap between typing signals sent for
// one room.
const DefaultTypingInterval = 2 * time.Second

// RoomAPI is the HTTP side of the chat server. rest.Client implements it.
type RoomAPI interface {
	ListRooms(ctx context.Context) ([]livechat.Room, error)
	CreateRoom(ctx context.Context, name string, typ livechat.RoomType, participants []string) (*livechat.Room, error)
	UpdateRoom(ctx context.Context, roomID, name string) (*livechat.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	GetMessages(ctx context.Context, roomID string, limit int, before string) (*livechat.MessagePage, error)
}

// ChatOption customizes a Chat.
type ChatOption func(*Chat)

// WithRoomAPI enables the room and history operations.
func WithRoomAPI(api RoomAPI) ChatOption {
	return func(c *Chat) { c.api = api }
}

// WithTypingInterval changes how often NotifyTyping may reach the server
// for a single room.
func WithTypingInterval(d time.Duration) ChatOption {
	return func(c *Chat) {
		if d > 0 {
			c.typingEvery = d
		}
	}
}

// WithNow replaces the time source used by the typing throttle.
func WithNow(now func() time.Time) ChatOption {
	return func(c *Chat) {
		if now != nil {
			c.now = now
		}
	}
}

// Chat is the view a UI component works with: reads come from the Store,
// actions go through the one shared Client.
type Chat struct {
	client *livechat.Client
	store  *Store
	api    RoomAPI
	unbind func()

	typingEvery time.Duration
	now         func() time.Time
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
}

// Use binds store to client and returns a Chat over both. Close releases the
// binding; the client itself is left running.
func Use(client *livechat.Client, store *Store, opts ...ChatOption) *Chat {
	c := &Chat{
		client:      client,
		store:       store,
		typingEvery: DefaultTypingInterval,
		now:         time.Now,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unbind = Bind(client, store)
	return c
}

// Close detaches the store from the client.
func (c *Chat) Close() { c.unbind() }

func (c *Chat) Status() livechat.ConnectionState { return c.store.Status() }

func (c *Chat) Rooms() []livechat.Room { return c.store.Snapshot().Rooms }

func (c *Chat) Messages(roomID string) []livechat.Message { return c.store.Messages(roomID) }

func (c *Chat) TypingUsers(roomID string) []TypingUser { return c.store.Snapshot().Typing[roomID] }

func (c *Chat) OnlineUsers() []livechat.OnlineUser { return c.store.Snapshot().OnlineUsers }

// Subscribe registers fn for store changes.
func (c *Chat) Subscribe(fn func(Snapshot)) func() { return c.store.Subscribe(fn) }

// JoinRoom joins roomID. Offline joins are replayed on the next connect.
func (c *Chat) JoinRoom(ctx context.Context, roomID string) error {
	return c.client.JoinRoom(ctx, roomID)
}

// LeaveRoom leaves roomID and drops its local state.
func (c *Chat) LeaveRoom(ctx context.Context, roomID string) error {
	if err := c.client.LeaveRoom(ctx, roomID); err != nil {
		return err
	}
	c.store.RemoveRoom(roomID)
	return nil
}

// SelectRoom marks roomID as the room on screen.
func (c *Chat) SelectRoom(roomID string) { c.store.SetActiveRoom(roomID) }

func (c *Chat) SendMessage(ctx context.Context, roomID, content string) (*livechat.OutgoingMessage, error) {
	return c.client.SendMessage(ctx, roomID, content, livechat.MessageText, nil)
}

func (c *Chat) SendFile(ctx context.Context, roomID, name, contentType string, r io.Reader) (*livechat.OutgoingMessage, error) {
	return c.client.SendFile(ctx, roomID, name, contentType, r)
}

// MarkMessageAsRead acknowledges a message and records the read locally.
func (c *Chat) MarkMessageAsRead(ctx context.Context, messageID, roomID string) {
	c.client.MarkMessageAsRead(ctx, messageID, roomID)
	c.store.MarkReadLocally(roomID, messageID)
}

// MarkRoomAsRead acknowledges the room and resets its unread count.
func (c *Chat) MarkRoomAsRead(ctx context.Context, roomID string) {
	c.client.MarkRoomAsRead(ctx, roomID)
	c.store.ResetUnread(roomID)
}

// NotifyTyping is meant to be called on every keystroke. At most one typing
// signal per interval is sent for each room.
func (c *Chat) NotifyTyping(ctx context.Context, roomID string) bool {
	if !c.limiter(roomID).AllowN(c.now(), 1) {
		return false
	}
	c.client.StartTyping(ctx, roomID)
	return true
}

// StopTyping sends stopTyping and lets the next NotifyTyping through.
func (c *Chat) StopTyping(ctx context.Context, roomID string) {
	c.mu.Lock()
	delete(c.limiters, roomID)
	c.mu.Unlock()
	c.client.StopTyping(ctx, roomID)
}

func (c *Chat) SetPresence(ctx context.Context, status livechat.PresenceStatus) {
	c.client.SetPresence(ctx, status)
}

func (c *Chat) limiter(roomID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[roomID]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.typingEvery), 1)
		c.limiters[roomID] = l
	}
	return l
}

func (c *Chat) roomAPI() (RoomAPI, error) {
	if c.api == nil {
		return nil, livechat.NewError(livechat.ErrorInvalidConfig, "no room API configured")
	}
	return c.api, nil
}

// LoadRooms fetches the room list into the store.
func (c *Chat) LoadRooms(ctx context.Context) ([]livechat.Room, error) {
	api, err := c.roomAPI()
	if err != nil {
		return nil, err
	}
	rooms, err := api.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	c.store.SetRooms(rooms)
	return rooms, nil
}

// LoadMessages fetches the page of history older than what the store
// already holds for roomID. It reports whether more pages exist.
func (c *Chat) LoadMessages(ctx context.Context, roomID string, limit int) (bool, error) {
	api, err := c.roomAPI()
	if err != nil {
		return false, err
	}
	page, err := api.GetMessages(ctx, roomID, limit, c.store.Oldest(roomID))
	if err != nil {
		return false, err
	}
	c.store.MergeHistory(roomID, page.Messages)
	return page.HasMore, nil
}

// CreateRoom creates a room on the server and joins it.
func (c *Chat) CreateRoom(ctx context.Context, name string, typ livechat.RoomType, participants []string) (*livechat.Room, error) {
	api, err := c.roomAPI()
	if err != nil {
		return nil, err
	}
	room, err := api.CreateRoom(ctx, name, typ, participants)
	if err != nil {
		return nil, err
	}
	c.store.UpsertRoom(*room)
	if err := c.client.JoinRoom(ctx, room.ID); err != nil {
		return room, err
	}
	return room, nil
}

// UpdateRoom renames a room.
func (c *Chat) UpdateRoom(ctx context.Context, roomID, name string) (*livechat.Room, error) {
	api, err := c.roomAPI()
	if err != nil {
		return nil, err
	}
	room, err := api.UpdateRoom(ctx, roomID, name)
	if err != nil {
		return nil, err
	}
	c.store.UpsertRoom(*room)
	return room, nil
}

// DeleteRoom deletes a room on the server, leaves it and drops it locally.
func (c *Chat) DeleteRoom(ctx context.Context, roomID string) error {
	api, err := c.roomAPI()
	if err != nil {
		return err
	}
	if err := api.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	return c.LeaveRoom(ctx, roomID)
}
