// Package daemon owns the long-running process that executes queued
// runs.
//
// Exactly one daemon may run per data directory, enforced with a file
// lock. The daemon drains the run queue one item at a time through the
// engine, reports interrupted runs found at startup, and exposes
// control operations for the IPC layer.
package daemon
