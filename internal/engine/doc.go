// Package engine runs batches end to end.
//
// A run walks its items one at a time. Each item goes through the
// retry executor, which generates, gates, and either keeps or retries
// the image, and optionally through the best-of-N selector, which
// keeps the highest scoring candidate. Between items the engine
// honors pause and cancel requests, writes a checkpoint, and publishes
// a progress event. Item failures never abort the run; only
// cancellation does.
package engine
