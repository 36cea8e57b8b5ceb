// Package event provides the in-process event coordinator which links the
// silo'd parts of the catalog together. Stores dispatch events after a
// write commits, and read-side consumers (the REST/websocket gateway, the
// warm genre catalog) subscribe to re-read the committed state. This gives
// subscribers latest-value-wins semantics: the payload only carries the
// identity of what changed, never the data itself.
package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/google/uuid"
)

var log = logger.Get("EventBus")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		sync.Mutex
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	// MOVIE_UPDATE payloads carry the int64 ID of the movie row which was
	// inserted, updated, archived, restored or watch-toggled.
	MOVIE_UPDATE Event = "movie:update"

	// MOVIE_REMOVE payloads carry the int64 ID of a movie row which no
	// longer exists.
	MOVIE_REMOVE Event = "movie:remove"

	// GENRE_UPDATE carries no meaningful payload (nil); subscribers should
	// re-read the genre table in full.
	GENRE_UPDATE Event = "genre:update"

	// AGGREGATION_UPDATE payloads carry the uuid.UUID of the aggregation
	// session whose state machine advanced.
	AGGREGATION_UPDATE Event = "aggregation:update"
)

func New() EventCoordinator {
	return &eventHandler{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel takes an event type and a channel and will send
// HandlerEvent messages on the channel any time a Dispatch for the provided
// event occurs. This method can be used multiple times for different events
// on the same channel.
//
// If the channel is BLOCKED when the bus attempts to send on it, the thread
// dispatching the event will also be blocked. Buffer handler channels
// appropriately to avoid dispatcher-side blocking.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	handler.Lock()
	defer handler.Unlock()

	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// RegisterHandlerFunction takes an event type and a handler method which is
// called with the payload whenever the event is dispatched. The handle
// provided should be guaranteed to return quickly, else other threads
// calling Dispatch on this bus will be blocked.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction behaves as RegisterHandlerFunction except the
// handle runs inside its own goroutine, so its speed does not matter to the
// event bus.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.Lock()
	defer handler.Unlock()

	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch delivers the payload to every handler registered for the event.
// Note that this method WILL block if a synchronous handler function is
// blocking, or if channel handlers are blocked.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := validatePayload(event, payload); err != nil {
		log.Fatalf("Dispatch for event %v FAILED validation: %v\n", event, err)
		return
	}

	handler.Lock()
	fns := append([]handlerMethod(nil), handler.fnHandlers[event]...)
	chans := append([]HandlerChannel(nil), handler.chanHandlers[event]...)
	handler.Unlock()

	for _, handle := range fns {
		if handle.async {
			go handle.handle(event, payload)
		} else {
			handle.handle(event, payload)
		}
	}

	if len(chans) > 0 {
		message := HandlerEvent{event, payload}
		for _, handle := range chans {
			handle <- message
		}
	}
}

// validatePayload ensures the payload provided is legal for the event
// specified; an invalid payload must never reach registered handlers.
func validatePayload(event Event, payload Payload) error {
	payloadTypeName := "Nil"
	if t := reflect.TypeOf(payload); t != nil {
		payloadTypeName = t.Name()
	}

	switch event {
	case MOVIE_UPDATE, MOVIE_REMOVE:
		if _, ok := payload.(int64); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event, expected int64 movie ID", payloadTypeName, event)
		}

		return nil
	case AGGREGATION_UPDATE:
		if _, ok := payload.(uuid.UUID); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event, expected uuid.UUID session ID", payloadTypeName, event)
		}

		return nil
	case GENRE_UPDATE:
		return nil
	}

	return errors.New("event type not recognized for validation")
}
