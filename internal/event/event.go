// Package event carries domain events between the write path and their
// consumers. Producers choose between immediate in-process dispatch and
// deferred delivery through the transactional outbox.
package event

// Event is a fact about something that happened in the business domain.
type Event interface {
	EventName() string
}
