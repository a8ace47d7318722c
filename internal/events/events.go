// Package events defines the progress and result events emitted by the
// install pipeline and a small in-process bus that fans them out to the
// terminal UI and websocket clients.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind
type Type string

const (
	ConfirmationRequest Type = "confirmation-request"
	Start               Type = "start"
	Progress            Type = "progress"
	ExtractStart        Type = "extract-start"
	ExtractComplete     Type = "extract-complete"
	Success             Type = "success"
	Error               Type = "error"
	Cancelled           Type = "cancelled"
)

// Event is one notification for the UI
type Event struct {
	Type        Type      `json:"type"`
	ID          string    `json:"id"`
	URL         string    `json:"url,omitempty"`
	Received    int64     `json:"received,omitempty"`
	Total       int64     `json:"total,omitempty"`
	Percent     float64   `json:"percent,omitempty"`
	PackageName string    `json:"package_name,omitempty"`
	PackagePath string    `json:"package_path,omitempty"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// Terminal reports whether no further events follow for this id
func (e Event) Terminal() bool {
	switch e.Type {
	case Success, Error, Cancelled:
		return true
	}
	return false
}

// Emitter receives events
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event
var Discard Emitter = EmitterFunc(func(Event) {})

// Bus fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full loses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Emit stamps and publishes e to every subscriber
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it. buffer <= 0 selects a default size.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

// Close closes all subscriber channels. Later Emit calls are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
