// SPDX-License-Identifier: MIT

package sqlite

import (
	"database/sql"
	"time"
)

// Timestamps are stored as fixed-width RFC3339 TEXT in UTC so that string
// comparison and ORDER BY follow time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// NullTime renders an optional time; nil stores NULL.
func NullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// ParseTime parses a stored timestamp, returning the zero time on garbage.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseNullTime parses an optional stored timestamp.
func ParseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := ParseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Bool converts a Go bool to the 0/1 INTEGER convention.
func Bool(b bool) int {
	if b {
		return 1
	}
	return 0
}
