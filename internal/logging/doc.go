// Package logging configures the structured slog logger shared by every
// command: text records on stderr, plus an optional rotating JSON log file.
package logging
