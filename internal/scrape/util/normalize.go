package util

import (
	"strconv"
	"strings"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Number parses a published statistic. Thousands separators are allowed;
// suppression markers like "(D)" or "(NA)" are not numbers.
func Number(s string) (float64, bool) {
	s = strings.ReplaceAll(CleanText(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// LastN returns the trailing n bytes of s (all of s when shorter).
func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
