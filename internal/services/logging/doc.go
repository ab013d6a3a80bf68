// Package logging builds the process-wide slog logger from configuration:
// a console text handler, an optional JSON file handler, and an optional
// rate-limited Discord channel sink. Handlers can be swapped on config hot
// reload without replacing the logger held by other components.
package logging
