package collab

import (
	"github.com/opencrm/collab.go/internal/rand"
	"github.com/opencrm/collab.go/pkg/protocol"
)

const subscriptionIDLength = 16

// Handler receives raw frames of the type it was registered for.
// Handlers run on the dispatch goroutine; a slow handler delays dispatch.
type Handler func(msg *protocol.Message)

// Subscribe registers a handler for an exact frame type tag and returns a
// subscription id for Unsubscribe. Handlers see the frame after the engine's
// own components have applied it.
func (e *Engine) Subscribe(t protocol.MessageType, h Handler) string {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	id := rand.String(subscriptionIDLength)
	if e.subs[t] == nil {
		e.subs[t] = make(map[string]Handler)
	}
	e.subs[t][id] = h

	return id
}

// Unsubscribe removes a handler by subscription id. It reports whether a
// handler was registered under that id.
func (e *Engine) Unsubscribe(t protocol.MessageType, id string) bool {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	handlers, ok := e.subs[t]
	if !ok {
		return false
	}
	if _, ok := handlers[id]; !ok {
		return false
	}

	delete(handlers, id)
	if len(handlers) == 0 {
		delete(e.subs, t)
	}

	return true
}

func (e *Engine) emit(msg *protocol.Message) {
	e.subsMu.RLock()
	handlers := make([]Handler, 0, len(e.subs[msg.Type]))
	for _, h := range e.subs[msg.Type] {
		handlers = append(handlers, h)
	}
	e.subsMu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
