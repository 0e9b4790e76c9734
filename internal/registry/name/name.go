// Package name normalizes package names and computes their location inside
// the index's tiered directory layout.
package name

import (
	"strings"

	"github.com/onelson/estuary-go/internal/apperrors"
)

var reserved = map[string]struct{}{
	"nul": {}, "con": {}, "aux": {}, "prn": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {},
}

// Validate reports whether name is an acceptable package name: non-empty,
// ASCII, starting with a letter, remaining characters alphanumeric/-/_,
// length <= 64, and not one of the reserved platform filenames.
func Validate(n string) apperrors.Envelope {
	if n == "" {
		return apperrors.New(apperrors.CodeInvalidPackageName, "package name must not be empty")
	}
	if len(n) > 64 {
		return apperrors.New(apperrors.CodeInvalidPackageName, "package name exceeds 64 characters")
	}
	first := n[0]
	if !isAlpha(first) {
		return apperrors.New(apperrors.CodeInvalidPackageName, "package name must start with a letter")
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c > 127 {
			return apperrors.New(apperrors.CodeInvalidPackageName, "package name must be ASCII")
		}
		if !isAlpha(c) && !isDigit(c) && c != '-' && c != '_' {
			return apperrors.New(apperrors.CodeInvalidPackageName, "package name contains an invalid character")
		}
	}
	if _, ok := reserved[strings.ToLower(n)]; ok {
		return apperrors.New(apperrors.CodeInvalidPackageName, "package name is reserved")
	}
	return apperrors.Envelope{}
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Canonical folds case and treats '-' and '_' as equivalent, for collision
// detection between otherwise-distinct names.
func Canonical(n string) string {
	lower := strings.ToLower(n)
	return strings.ReplaceAll(lower, "_", "-")
}

// PathFor returns the directory (relative to the index root) holding the
// package file for name, without a trailing slash, per the tiered layout:
//
//	len 1 -> "1"
//	len 2 -> "2"
//	len 3 -> "3/<c0>"
//	len >= 4 -> "<c0c1>/<c2c3>"
func PathFor(n string) string {
	lower := strings.ToLower(n)
	switch len(lower) {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3/" + lower[0:1]
	default:
		return lower[0:2] + "/" + lower[2:4]
	}
}

// FileFor returns the path (relative to the index root) of the package
// file for name, including its directory.
func FileFor(n string) string {
	lower := strings.ToLower(n)
	return PathFor(n) + "/" + lower
}
