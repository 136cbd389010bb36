// Package internal contains helper utilities that are intentionally private to adminauth:
// secure secret generation and sortable identifiers.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed fixed-window counters for failed authentication
//
// # What this package must NOT do
//
//   - Export types that appear in the public adminauth API.
//   - Be imported by any package outside the adminauth module.
package internal
