// Package synthesis talks to the external generation backend.
//
// Pipeline produces images from generation requests and Scorer rates
// them against their prompt. Both are interfaces with HTTP
// implementations so tests can substitute in-process fakes. Errors are
// tagged with sentinel markers so callers can distinguish failures that
// are worth retrying from failures that are not.
package synthesis
