// Package storage holds persistence sentinels shared by the domain packages
// and the SQL store that implements their boundaries.
package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// ToMillis converts a timestamp to the UTC unix-millisecond form stored in every table.
func ToMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// FromMillis converts a stored unix-millisecond value back to a UTC timestamp.
func FromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
