// Package textkey derives stable identity keys from visible item titles and
// provides the edit-distance similarity used by fuzzy filtering. Titles are
// the only durable identity the host page exposes; no numeric IDs exist.
package textkey

import "strings"

// Normalize returns the identity key for a visible title: trimmed,
// case-folded, with internal whitespace runs collapsed to single spaces.
// Two titles differing only in case or surrounding whitespace map to the
// same key.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Similarity returns (maxLen - editDistance) / maxLen for the two strings,
// case-insensitive. Identical strings score 1.0; the empty-vs-empty pair
// also scores 1.0. A missing operand scores 0.
func Similarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	longer, shorter := s1, s2
	if len(s1) < len(s2) {
		longer, shorter = s2, s1
	}
	longerLen := len([]rune(longer))
	if longerLen == 0 {
		return 1.0
	}
	return float64(longerLen-EditDistance(longer, shorter)) / float64(longerLen)
}

// EditDistance computes the classic single-character-edit (insert, delete,
// substitute) distance between the two strings, case-insensitive.
func EditDistance(s1, s2 string) int {
	a := []rune(strings.ToLower(s1))
	b := []rune(strings.ToLower(s2))

	costs := make([]int, len(b)+1)
	for j := range costs {
		costs[j] = j
	}
	for i := 1; i <= len(a); i++ {
		lastValue := i
		for j := 1; j <= len(b); j++ {
			newValue := costs[j-1]
			if a[i-1] != b[j-1] {
				newValue = min(min(newValue, lastValue), costs[j]) + 1
			}
			costs[j-1] = lastValue
			lastValue = newValue
		}
		costs[len(b)] = lastValue
	}
	return costs[len(b)]
}
