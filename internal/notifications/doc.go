// Package notifications pushes run updates through ntfy.
//
// When no topic is configured the service degrades to a noop, so
// callers never need to guard their notification calls.
package notifications
