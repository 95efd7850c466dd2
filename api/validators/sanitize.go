package validators

import "strings"

// SanitizeString collapses runs of whitespace and cuts the result to maxLen
// runes. maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	out := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return out
}
