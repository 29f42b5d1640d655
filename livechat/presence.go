package livechat

import "context"

// ActivitySignal is a local focus or visibility change reported by the host
// environment.
type ActivitySignal int

const (
	SignalVisible ActivitySignal = iota
	SignalHidden
	SignalFocus
	SignalBlur
)

func (s ActivitySignal) String() string {
	switch s {
	case SignalVisible:
		return "visible"
	case SignalHidden:
		return "hidden"
	case SignalFocus:
		return "focus"
	case SignalBlur:
		return "blur"
	default:
		return "unknown"
	}
}

// StatusForSignal maps hidden and blur to away, visible and focus to online.
func StatusForSignal(s ActivitySignal) PresenceStatus {
	switch s {
	case SignalHidden, SignalBlur:
		return PresenceAway
	default:
		return PresenceOnline
	}
}

// SetPresence publishes the local user's status with the current time. Every
// call is sent; the server treats repeats as no-ops. Dropped while offline.
func (c *Client) SetPresence(ctx context.Context, status PresenceStatus) {
	user := c.identity()
	c.emitBestEffort(ctx, emitPresenceUpdate, presencePayload{
		UserID:   user.ID,
		Status:   status,
		LastSeen: c.clock.Now().UTC(),
	})
}

// WatchActivity publishes presence for every signal until ctx is done or
// signals is closed.
func (c *Client) WatchActivity(ctx context.Context, signals <-chan ActivitySignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-signals:
			if !ok {
				return
			}
			c.SetPresence(ctx, StatusForSignal(s))
		}
	}
}
