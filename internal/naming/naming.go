// Package naming converts secret labels into environment variable names.
package naming

import "strings"

// Normalize derives an environment variable name from a secret label.
//
// The label is uppercased; spaces and hyphens become underscores; every
// other character outside [A-Za-z0-9_] is dropped. The prefix is prepended
// verbatim, without normalization. The function is pure and total: any
// input produces a result and the same input always produces the same
// result.
//
//	Normalize("APP_", "connection string") == "APP_CONNECTION_STRING"
//	Normalize("", "api-key.v2!@#")         == "API_KEYV2"
func Normalize(prefix, label string) string {
	return fold(prefix, label, true)
}

// Sanitize is Normalize without the case fold: the label keeps its
// original casing while spaces and hyphens still become underscores and
// every other invalid character is dropped.
func Sanitize(prefix, label string) string {
	return fold(prefix, label, false)
}

func fold(prefix, label string, upper bool) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(label))
	b.WriteString(prefix)

	for _, r := range label {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z':
			if upper {
				b.WriteByte(byte(r - 'a' + 'A'))
			} else {
				b.WriteByte(byte(r))
			}
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteByte(byte(r))
		}
	}

	return b.String()
}
