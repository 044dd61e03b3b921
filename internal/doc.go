// Package internal contains helper utilities that are intentionally private
// to profauth, including secure random generation and device fingerprint
// helpers.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//
// # What this package must NOT do
//
//   - Export types that appear in the public profauth API.
//   - Be imported by any package outside the profauth module.
package internal
