// Package domain contains the core business entities and interfaces for the
// URL shortening service. This package follows hexagonal architecture
// principles and must remain independent of infrastructure concerns
// (database, HTTP, Redis, logging, etc.).
//
// Entities:
//   - User, LoginAttemptRecord, Session: the credential subsystem
//   - Domain, ShortURL, UserURL: the shortening engine's data model
//   - AnalyticEvent: append-only click analytics
//   - RateLimitViolation, LogEntry: edge pipeline persistence
//
// All repository and cache interfaces consumed by the use cases are declared
// here so infrastructure adapters can be swapped in tests.
package domain
