// Package batch tracks per-run progress underneath the process lifecycle:
// item counters, pause flag, and a small state machine whose tick
// auto-completes on the final item and whose cancellation is two-phase so the
// orchestrator can clean up between "cancel requested" and "cancel
// acknowledged".
package batch
