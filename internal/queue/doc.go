// Package queue persists submitted runs in SQLite.
//
// The daemon executes one run at a time; everything else waits here as
// a pending item. Items survive restarts, and a run that was marked
// running when the process died is put back to pending on startup.
package queue
