// Package pathutil has checks for URL paths that map onto a filesystem.
package pathutil

import "strings"

// HasDotSegments reports whether any "/"-separated segment is "." or "..".
func HasDotSegments(p string) bool {
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Safe reports whether p can be looked up in an fs.FS without ambiguity.
// NUL bytes, backslashes and any ".." substring are rejected outright, so
// encoded traversal that survives cleaning is refused too.
func Safe(p string) bool {
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") {
		return false
	}
	return !HasDotSegments(p)
}
