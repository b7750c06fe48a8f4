// Package recrawl provides a recoverable crawl runtime: request queues,
// a composable request filter algebra and tasks whose frontier can be
// stashed to disk on interruption and recovered later.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., bloom/, goque/, sqlite/).
package recrawl
