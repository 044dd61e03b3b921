// Package middleware exposes HTTP middleware adapters for primary-session and
// step-up enforcement built on top of profauth.Engine validation.
//
// # Guards
//
//   - [Guard] — authenticates a primary session for one principal kind.
//   - [StepUpGuard] — verifies a step-up capability token on top of Guard.
//
// Each guard reads the kind's configured bearer header, calls the engine,
// and injects the validated identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the relational store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
