// Package lifecycle owns the process-wide generation state machine. Exactly
// one Machine exists per daemon; every transition is validated against a
// fixed table, recorded in a bounded history, mirrored to a persistence hook,
// and (for cancel/reset) reflected into the synthesis engine's interrupt
// flag.
package lifecycle
