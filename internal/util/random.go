// Package util provides utility functions for the ReplyPipe application.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateTaskID generates a background task ID with "t_" prefix.
func GenerateTaskID() string {
	return GenerateRandomID("t_", 16)
}

// RandomIndex returns a uniformly distributed index in [0, n). It returns 0 when n <= 0.
func RandomIndex(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.Intn(n)
}

// PickRandom returns a uniformly chosen element of items, or the empty string.
func PickRandom(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[RandomIndex(len(items))]
}
