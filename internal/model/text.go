package model

// TruncateRunes cuts s after at most n runes. Artifacts are UTF-8, so the
// cut must land on a rune boundary, never inside a multi-byte sequence.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i]
		}
		seen++
	}
	return s
}
