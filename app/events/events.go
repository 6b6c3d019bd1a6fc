// Package events is an in-process publish/subscribe bus for server
// lifecycle notifications
package events

import (
	"context"
	"sync"

	"github.com/xavierroma/vala/app/logging"
)

// Lifecycle event names published by the server
const (
	Listening = "server.listening"
	Stopping  = "server.stopping"
	Stopped   = "server.stopped"
)

// Listener receives the payload of a published event
type Listener func(ctx context.Context, payload any)

// Bus fans published events out to their subscribers
type Bus struct {
	mtx       sync.RWMutex
	listeners map[string][]Listener
	logger    *logging.Logger
}

// NewBus returns an empty Bus. A nil logger discards panic reports.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NoOpLogger()
	}
	return &Bus{listeners: make(map[string][]Listener), logger: logger}
}

// Subscribe registers fn for events published under name. Nil listeners are
// ignored.
func (b *Bus) Subscribe(name string, fn Listener) {
	if fn == nil {
		return
	}
	b.mtx.Lock()
	b.listeners[name] = append(b.listeners[name], fn)
	b.mtx.Unlock()
}

// Publish delivers payload to every listener of name synchronously, in
// subscription order, and returns how many were called. A panicking listener
// is logged and does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, name string, payload any) int {
	if b == nil {
		return 0
	}
	b.mtx.RLock()
	ls := make([]Listener, len(b.listeners[name]))
	copy(ls, b.listeners[name])
	b.mtx.RUnlock()

	for _, fn := range ls {
		b.deliver(ctx, name, fn, payload)
	}
	return len(ls)
}

func (b *Bus) deliver(ctx context.Context, name string, fn Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", logging.Pairs{"name": name, "panic": r})
		}
	}()
	fn(ctx, payload)
}

type busKey struct{}

// NewContext returns a copy of ctx carrying b
func NewContext(ctx context.Context, b *Bus) context.Context {
	return context.WithValue(ctx, busKey{}, b)
}

// FromContext returns the Bus stored in ctx, if any
func FromContext(ctx context.Context) *Bus {
	b, _ := ctx.Value(busKey{}).(*Bus)
	return b
}
