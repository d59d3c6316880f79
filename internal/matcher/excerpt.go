package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Redacted replaces secret-looking values in excerpts.
const Redacted = "[REDACTED]"

// secretRe matches assignments to names ending in a secret-like word, such as
// DB_PASSWORD=x or "apiKey": "x".
var secretRe = regexp.MustCompile(`(?i)([\w-]*(?:password|passwd|secret|token|api_key|apikey))(["']?\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s,;]+)`)

// Excerpt trims line, redacts secret assignments, and truncates the result to
// maxChars runes, ellipsis included. maxChars <= 0 disables truncation.
func Excerpt(line string, maxChars int) string {
	s := strings.TrimSpace(line)
	s = secretRe.ReplaceAllString(s, "${1}${2}"+Redacted)
	if maxChars > 0 && utf8.RuneCountInString(s) > maxChars {
		runes := []rune(s)
		if maxChars <= 3 {
			return string(runes[:maxChars])
		}
		s = string(runes[:maxChars-3]) + "..."
	}
	return s
}

// lineAt returns the 1-based line number and text of the line holding byte
// offset idx.
func lineAt(data []byte, idx int) (int, string) {
	if idx < 0 || idx > len(data) {
		return 0, ""
	}
	lineNum := 1
	start := 0
	for i := 0; i < idx; i++ {
		if data[i] == '\n' {
			lineNum++
			start = i + 1
		}
	}
	end := len(data)
	for i := idx; i < len(data); i++ {
		if data[i] == '\n' {
			end = i
			break
		}
	}
	return lineNum, strings.TrimRight(string(data[start:end]), "\r")
}
