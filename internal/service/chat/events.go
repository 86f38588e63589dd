package chat

import (
	"log"
	"sync"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

const defaultSubscriberBuffer = 16

// broker fans session events out to subscribers without blocking the store.
type broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan chat.Event
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan chat.Event)}
}

func (b *broker) subscribe(buffer int) (<-chan chat.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	ch := make(chan chat.Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broker) publish(event chat.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Printf("[chat] dropping %s event for slow subscriber=%d session=%s", event.Type, id, event.SessionID)
		}
	}
}
