package create

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// Topics emitted by the create context.
const (
	TopicInstancesAdded          = "instances.added"
	TopicInstancesRemoved        = "instances.removed"
	TopicValuesChanged           = "values.changed"
	TopicPreCreateAttrsChanged   = "pre.create.attr.defs.changed"
	TopicCreateAttrsChanged      = "create.attr.defs.changed"
	TopicPublishAttrsChanged     = "publish.attr.defs.changed"
	TopicResetStarted            = "create.context.reset.started"
	TopicResetFinished           = "create.context.reset.finished"
	TopicAddedInstancesToContext = "create.context.added.instance"
)

// Event is one notification delivered to hub callbacks.
type Event struct {
	Topic  string
	Sender string
	Data   map[string]any
}

// EventCallback is a registered listener. Deactivate detaches it, pending
// deliveries included.
type EventCallback struct {
	topic  string
	fn     func(Event)
	active atomic.Bool
}

// Deactivate detaches the callback from its hub.
func (c *EventCallback) Deactivate() { c.active.Store(false) }

// Active reports whether the callback still receives events.
func (c *EventCallback) Active() bool { return c.active.Load() }

// EventHub delivers events to topic callbacks one at a time. Events emitted
// while a delivery is running are queued and processed afterwards, so
// callbacks observe a stable order and never reenter each other.
type EventHub struct {
	logger     Logger
	callbacks  map[string][]*EventCallback
	queue      []Event
	processing bool
}

// NewEventHub builds a hub logging callback panics through the logger.
func NewEventHub(logger Logger) *EventHub {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventHub{logger: logger, callbacks: map[string][]*EventCallback{}}
}

// AddCallback registers a listener for the topic. The empty topic receives
// every event.
func (h *EventHub) AddCallback(topic string, fn func(Event)) *EventCallback {
	callback := &EventCallback{topic: topic, fn: fn}
	callback.active.Store(true)
	h.callbacks[topic] = append(h.callbacks[topic], callback)
	return callback
}

// Emit queues the event and processes the queue unless a delivery is already
// running higher up the stack.
func (h *EventHub) Emit(event Event) {
	h.queue = append(h.queue, event)
	if h.processing {
		return
	}
	h.processing = true
	defer func() { h.processing = false }()
	for len(h.queue) > 0 {
		next := h.queue[0]
		h.queue = h.queue[1:]
		h.deliver(next)
	}
}

func (h *EventHub) deliver(event Event) {
	for _, topic := range []string{event.Topic, ""} {
		// Iterate over a snapshot; callbacks may register new listeners
		// while running and those must survive the compaction below.
		snapshot := append([]*EventCallback(nil), h.callbacks[topic]...)
		for _, callback := range snapshot {
			if callback.Active() {
				h.invoke(callback, event)
			}
		}
		current := h.callbacks[topic]
		kept := current[:0]
		for _, callback := range current {
			if callback.Active() {
				kept = append(kept, callback)
			}
		}
		if len(kept) != len(current) {
			h.callbacks[topic] = kept
		}
	}
}

func (h *EventHub) invoke(callback *EventCallback, event Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event callback panicked",
				"topic", event.Topic,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	callback.fn(event)
}

// Clear drops all callbacks and pending events.
func (h *EventHub) Clear() {
	h.callbacks = map[string][]*EventCallback{}
	h.queue = nil
}
