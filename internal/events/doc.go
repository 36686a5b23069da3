// Package events carries progress updates out of a running batch.
//
// The bus keeps a bounded, sequence-numbered history so late clients
// can catch up, and fans each event out to registered callbacks.
// Callback failures are isolated; a panicking subscriber never
// disturbs the run that published the event.
package events
