// Package logging provides structured logging helpers built on log/slog.
//
// It defines the shared attribute keys used across tasksage so that log
// entries stay queryable (operation, tool, user_hash, status, error), plus
// helpers for anonymizing user identifiers and masking tokens before they
// reach log output.
package logging
