// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/gopherthread/internal/types"

// Compile-time interface compliance checks.
var _ types.ThreadStore = (*ThreadStore)(nil)
