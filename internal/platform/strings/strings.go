// Package strings holds small string helpers for SQL building
package strings

import std "strings"

var likeEscaper = std.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes s for use as a literal inside a LIKE pattern with the default '\' escape
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

// PrefixPattern returns a LIKE pattern matching names that start with prefix
func PrefixPattern(prefix string) string { return EscapeLike(prefix) + "%" }

// AllDigits reports whether s is non-empty and only ASCII digits
func AllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
