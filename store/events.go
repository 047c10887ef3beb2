package store

import "github.com/tailored-agentic-units/restore/observability"

// Store event types.
const (
	EventStoreCreate      observability.EventType = "store.create"
	EventStateReplace     observability.EventType = "store.state.replace"
	EventCommitStart      observability.EventType = "store.commit.start"
	EventCommitComplete   observability.EventType = "store.commit.complete"
	EventDispatchStart    observability.EventType = "store.dispatch.start"
	EventDispatchComplete observability.EventType = "store.dispatch.complete"
	EventMiddlewareApply  observability.EventType = "store.middleware.apply"
	EventUpdateDeferred   observability.EventType = "store.update.deferred"
	EventUpdateBlocked    observability.EventType = "store.update.blocked"
	EventListenerAdd      observability.EventType = "store.listener.subscribe"
	EventListenerRemove   observability.EventType = "store.listener.unsubscribe"
	EventNotify           observability.EventType = "store.notify"
	EventListenerPanic    observability.EventType = "store.listener.panic"
	EventHandlerNotFound  observability.EventType = "store.handler.not_found"
	EventHandlerFailure   observability.EventType = "store.handler.failure"
)
