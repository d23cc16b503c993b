package db

import "strings"

// IsUniqueViolation reports whether err looks like a Postgres unique
// constraint failure. With a constraint name it matches that specific
// constraint; otherwise any duplicate-key violation matches. Sqlite
// phrasing is covered too so the in-memory test driver behaves the same.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
