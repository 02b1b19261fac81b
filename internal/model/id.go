package model

import (
	"regexp"
	"strings"
	"time"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// Slugify turns a query into a filesystem-safe id fragment: non-word
// characters stripped, whitespace collapsed to underscores, lowercased and
// truncated to maxLen.
func Slugify(s string, maxLen int) string {
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ToLower(s)
	if len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "_")
	}
	return s
}

// NewTaskID derives the stable task/project identity:
// YYYYMMDD_HHMMSS_<slug(query)[:30]>.
func NewTaskID(query string, t time.Time) string {
	return t.Format("20060102_150405") + "_" + Slugify(query, 30)
}
