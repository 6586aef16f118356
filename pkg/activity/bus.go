package activity

import (
	"context"
	"sync"
)

// Bus wraps a Store with in-process fan-out notification. When Append is
// called, all subscribers receive the new entry.
type Bus struct {
	Store
	mu   sync.RWMutex
	subs map[chan *Entry]struct{}
}

// NewBus creates a Bus wrapping the given store.
func NewBus(store Store) *Bus {
	return &Bus{
		Store: store,
		subs:  make(map[chan *Entry]struct{}),
	}
}

// Append delegates to the underlying store, then fans out to all subscribers.
func (b *Bus) Append(ctx context.Context, userID int64, taskID, action, source string, detail map[string]any) (*Entry, error) {
	e, err := b.Store.Append(ctx, userID, taskID, action, source, detail)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking Append
		}
	}
	b.mu.RUnlock()

	return e, nil
}

// Subscribe returns a buffered channel that receives all new entries.
func (b *Bus) Subscribe() chan *Entry {
	ch := make(chan *Entry, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan *Entry) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
