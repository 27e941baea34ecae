/*
Package event provides a type-safe pub/sub event system for the agent
orchestration server.

The event system enables decoupled communication between different components
by allowing publishers to emit events and subscribers to react to them without
direct dependencies. TurnEngine writes SSE frames to the client directly; this
bus is for internal fan-out (sandbox lifecycle, title generation, permission
escalation) that has no single client waiting on it.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous event publishing patterns.

# Event Types

Conversation Events:
  - conversation.created: New conversation created
  - conversation.updated: Conversation state or title modified
  - conversation.deleted: Conversation removed

Message Events:
  - message.created: New message persisted

File Events:
  - file.edited: File was modified by the edit tool

Permission Events:
  - permission.required: A within-turn permission ask was raised
  - permission.resolved: A permission ask was answered

Sandbox Events:
  - sandbox.stopped: A conversation's sandbox was torn down

Title Events:
  - title.generated: TitleGenerator produced a title for a conversation

# Basic Usage

Publishing events:

	event.Publish(event.Event{
		Type: event.ConversationCreated,
		Data: event.ConversationCreatedData{Conversation: conv},
	})

	event.PublishSync(event.Event{
		Type: event.MessageCreated,
		Data: event.MessageCreatedData{Message: msg},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.SandboxStopped, func(e event.Event) {
		data := e.Data.(event.SandboxStoppedData)
		log.Info().Str("conversation", data.ConversationID).Msg("sandbox stopped")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Msg("event")
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

# Custom Event Bus

For testing or isolation, create a custom bus instance:

	bus := event.NewBus()
	defer bus.Close()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the
underlying pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()

This allows future migration to a distributed broker without changing the
package's public API.
*/
package event
