// Package metrics records per-batch outcome summaries.
//
// Each finished batch is written as one JSON file under the metrics
// directory. Loading tolerates corrupt or foreign files by skipping
// them, so a damaged record never hides the rest of the history.
package metrics
