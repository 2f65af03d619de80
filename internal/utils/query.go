// Package utils provides small helpers shared by the transport layers. They
// carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// ParseLimit parses a non-negative count from a query value. Empty input
// yields def. Malformed or negative input reports ok=false. A positive max
// caps the result.
//
//	ParseLimit("", 0, 500)    // 0, true
//	ParseLimit("50", 0, 500)  // 50, true
//	ParseLimit("900", 0, 500) // 500, true
//	ParseLimit("-1", 0, 500)  // 0, false
func ParseLimit(s string, def, max int) (n int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	if max > 0 && n > max {
		n = max
	}
	return n, true
}
