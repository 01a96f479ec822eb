// Package repository holds the metadata store contract.
// Implementations live in the postgres and sqlite subpackages.
package repository

import "errors"

// ErrNotFound is returned when no document row matches the requested ID.
var ErrNotFound = errors.New("document record not found")
