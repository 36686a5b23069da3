// Package checkpoint persists crash-safe snapshots of in-flight run state.
// Writes go through a bounded single-consumer queue so the orchestration loop
// never blocks on disk, and land atomically via temp-file-then-rename.
// Checkpointing is best-effort: write failures are logged and swallowed.
package checkpoint
