// Package textnorm holds the normalized-word comparison primitives shared
// by the streaming decoder and the command recognizer: whitespace
// collapsing, word normalization, common-prefix and tail-overlap
// computation, and hallucination-marker filtering.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	wsRunRE       = regexp.MustCompile(`\s+`)
	leadTrailNonW = regexp.MustCompile(`(^[^a-zA-Z0-9]+|[^a-zA-Z0-9]+$)`)
	nonLetterRE   = regexp.MustCompile(`[^a-z ]`)
)

// CollapseWhitespace reduces any run of whitespace to a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(wsRunRE.ReplaceAllString(s, " "))
}

// NormalizeWord lowercases a token and strips leading/trailing non-word characters.
func NormalizeWord(word string) string {
	return leadTrailNonW.ReplaceAllString(strings.ToLower(word), "")
}

// CommonPrefixLen returns the length of the longest common prefix of a and b
// under word normalization.
func CommonPrefixLen(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && NormalizeWord(a[i]) == NormalizeWord(b[i]) {
		i++
	}
	return i
}

// TailOverlapWords returns the largest k ≤ limit such that the last k
// normalized words of prev equal the first k normalized words of next.
func TailOverlapWords(prev, next []string, limit int) int {
	if len(prev) == 0 || len(next) == 0 {
		return 0
	}
	maxOverlap := min3(len(prev), len(next), limit)
	for k := maxOverlap; k > 0; k-- {
		if tailEqualsHead(prev, next, k) {
			return k
		}
	}
	return 0
}

func tailEqualsHead(prev, next []string, k int) bool {
	left := prev[len(prev)-k:]
	right := next[:k]
	for i := 0; i < k; i++ {
		if NormalizeWord(left[i]) != NormalizeWord(right[i]) {
			return false
		}
	}
	return true
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// HallucinationMarkers is the closed set of decoder outputs treated as
// whisper-family hallucinations on silent/near-silent audio: the union of
// the dictation and command daemons' HALLUCINATION_MARKERS constants in
// the original implementation.
var HallucinationMarkers = map[string]bool{
	"blank":            true,
	"blank audio":      true,
	"blankaudio":       true,
	"video playback":   true,
	"music":            true,
	"music playing":    true,
	"keyboard clicking": true,
	"silence":          true,
	"silence please":   true,
	"quiet":            true,
	"inaudible":        true,
	"foreign":          true,
	"subtitle":         true,
	"pause":            true,
	"breathing":        true,
	"inhales deeply":   true,
	"inhale":           true,
}

// IsHallucination normalizes text to letters-and-spaces only and checks it
// against the closed hallucination-marker set.
func IsHallucination(text string) bool {
	normalized := nonLetterRE.ReplaceAllString(strings.ReplaceAll(strings.ToLower(text), "_", " "), "")
	normalized = strings.TrimSpace(wsRunRE.ReplaceAllString(normalized, " "))
	return HallucinationMarkers[normalized]
}

// CountWordLikeTokens counts whitespace-split tokens that normalize to a
// non-empty word (i.e. contain at least one alphanumeric character).
func CountWordLikeTokens(text string) int {
	n := 0
	for _, tok := range strings.Fields(text) {
		if NormalizeWord(tok) != "" {
			n++
		}
	}
	return n
}
