package util

import (
	"path/filepath"
	"unicode/utf8"
)

// TempName returns the name an upload is staged under before ingestion.
// Directory components of name are dropped.
func TempName(name string) string {
	return "temp_" + filepath.Base(filepath.Clean("/"+name))
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n])
}
