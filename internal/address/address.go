// Package address validates and normalizes EVM wallet addresses.
package address

import (
	"regexp"
	"strings"
)

// pattern matches a 0x-prefixed 20-byte hex address. Full-string match,
// no surrounding whitespace tolerated.
var pattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValid reports whether s is a well-formed wallet address.
// The hex portion is case-insensitive; checksum casing is not verified.
func IsValid(s string) bool {
	return pattern.MatchString(s)
}

// Normalize lowercases an address for storage and comparison.
// It does not validate; call IsValid first.
func Normalize(s string) string {
	return strings.ToLower(s)
}
