package foanalytics

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ============================================================================
// Subscription Registry
// ============================================================================

// registry maps message types (including the wildcard key) to ordered sets
// of handlers. Dispatch runs typed handlers before wildcard handlers, each
// set in registration order.
type registry struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  logrus.FieldLogger
}

type subscription struct {
	id uuid.UUID
	fn Handler
}

func newRegistry(log logrus.FieldLogger) *registry {
	return &registry{
		subs: make(map[string][]subscription),
		log:  log,
	}
}

// subscribe registers fn under typ and returns a closure that removes
// exactly that registration. The same function may be registered under
// multiple types, or several times under one type, independently.
func (r *registry) subscribe(typ string, fn Handler) func() {
	id := uuid.New()
	r.mu.Lock()
	r.subs[typ] = append(r.subs[typ], subscription{id: id, fn: fn})
	r.mu.Unlock()
	return func() { r.remove(typ, id) }
}

// remove deletes one registration and prunes the type's entry when its set
// becomes empty. Removing an already-removed registration is a no-op.
func (r *registry) remove(typ string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[typ]
	for i, sub := range list {
		if sub.id == id {
			r.subs[typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[typ]) == 0 {
		delete(r.subs, typ)
	}
}

// dispatch delivers msg to the handlers registered under its exact type,
// then to the wildcard handlers. The handler list is snapshotted up front,
// so unsubscribing from inside a handler takes effect on the next dispatch.
func (r *registry) dispatch(msg Message) {
	r.mu.RLock()
	typed := r.subs[msg.Type]
	var wild []subscription
	if msg.Type != Wildcard {
		wild = r.subs[Wildcard]
	}
	handlers := make([]Handler, 0, len(typed)+len(wild))
	for _, sub := range typed {
		handlers = append(handlers, sub.fn)
	}
	for _, sub := range wild {
		handlers = append(handlers, sub.fn)
	}
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.invoke(fn, msg)
	}
}

// invoke isolates a single handler call: a panic is recovered and logged so
// subsequent handlers still run and the connection is unaffected.
func (r *registry) invoke(fn Handler, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"type":  msg.Type,
				"panic": rec,
			}).Error("realtime: message handler panicked")
		}
	}()
	fn(msg)
}
