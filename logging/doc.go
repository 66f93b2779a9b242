// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a RuntimeLogger with contextual
// helpers for the identifiers that matter in this runtime: thread and
// namespace.
package logging
