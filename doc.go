// Package profauth provides a dual-principal authentication engine: long-lived
// bearer sessions for master accounts and their delegated profiles, backed by a
// revocable relational session store, with an optional step-up TOTP second
// factor enforced through Redis-backed replay blacklists and attempt lockouts.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// profauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [Store] and [Notifier] collaborator interfaces, and value types
// (Identity, StepUpGrant, MetricsSnapshot). Token signing lives in jwt/,
// credential hashing in password/, the pgx-backed store in pgstore/, and
// request guards in middleware/. Internal coordination — audit dispatch,
// id generation, device fingerprinting — lives under internal/ and is never
// exported.
//
// # What this package must NOT do
//
//   - Expose credential hashes, TOTP secrets, or raw OTP codes through any
//     public API, audit event, or error string.
//   - Treat an infrastructure failure (store or Redis unreachable) as an
//     authentication verdict; [ErrStoreUnavailable] is always distinct.
//   - Hold locks across store or Redis round-trips.
package profauth
