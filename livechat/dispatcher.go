package livechat

import "sync"

// Dispatcher fans normalized events out to subscribers. Subscribers run on
// the goroutine that produced the event, in subscription order.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event and returns a function that removes it.
func (d *Dispatcher) Subscribe(fn func(Event)) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch delivers ev to every subscriber.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	subs := d.subs
	d.mu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// OnMessage registers callback for message events.
func (d *Dispatcher) OnMessage(fn func(MessageEvent)) func() {
	return d.Subscribe(func(ev Event) {
		if m, ok := ev.(MessageEvent); ok {
			fn(m)
		}
	})
}

// OnReceipt registers callback for delivery and read receipts.
func (d *Dispatcher) OnReceipt(fn func(ReceiptEvent)) func() {
	return d.Subscribe(func(ev Event) {
		if r, ok := ev.(ReceiptEvent); ok {
			fn(r)
		}
	})
}

// OnUser registers callback for user joined/left events.
func (d *Dispatcher) OnUser(fn func(UserEvent)) func() {
	return d.Subscribe(func(ev Event) {
		if u, ok := ev.(UserEvent); ok {
			fn(u)
		}
	})
}

// OnTyping registers callback for typing indicator changes.
func (d *Dispatcher) OnTyping(fn func(TypingEvent)) func() {
	return d.Subscribe(func(ev Event) {
		if t, ok := ev.(TypingEvent); ok {
			fn(t)
		}
	})
}

// OnStateChanged registers callback for connection state transitions.
func (d *Dispatcher) OnStateChanged(fn func(StateEvent)) func() {
	return d.Subscribe(func(ev Event) {
		if s, ok := ev.(StateEvent); ok {
			fn(s)
		}
	})
}

// OnError registers callback for errors.
func (d *Dispatcher) OnError(fn func(error)) func() {
	return d.Subscribe(func(ev Event) {
		if e, ok := ev.(ErrorEvent); ok && e.Err != nil {
			fn(e.Err)
		}
	})
}
