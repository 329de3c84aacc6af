// Package rules implements the live object graph of automation rules.
//
// A Rule binds one Trigger to one Effect. Triggers observe device
// properties, device events or the clock and emit State values whenever
// their view of "active" is (re)computed; Effects react to those states by
// writing properties, invoking actions or sending notifications.
//
// Composite behavior is expressed by nesting: MultiTrigger folds child
// states with AND/OR and only emits on edges of the combined value,
// MultiEffect forwards each state to every child.
//
// Every component round-trips through the tagged descriptions in package
// models. Construction from a description validates it fully; errors wrap
// ErrInvalidDescription.
//
// Components never return errors from the notification path. Failed reads
// leave a trigger silent, failed writes are retried once and then logged.
package rules
