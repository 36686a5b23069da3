// Package logging builds the slog loggers used across easel and provides
// typed attribute helpers plus the standardized field keys shared by the
// daemon, engine, and CLI surfaces.
package logging
