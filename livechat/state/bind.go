package state

import "github.com/vovakirdan/livechat-sdk-go/livechat"

// Bind feeds every event of client into store. Once connected the store also
// learns the local user id. The returned function detaches the store.
func Bind(client *livechat.Client, store *Store) (unbind func()) {
	return client.Subscribe(func(ev livechat.Event) {
		if se, ok := ev.(livechat.StateEvent); ok && se.NewState == livechat.StateConnected {
			if u, ok := client.User(); ok {
				store.SetSelf(u.ID)
			}
		}
		store.Apply(ev)
	})
}
