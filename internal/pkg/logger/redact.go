package logger

import (
	"strings"
	"unicode/utf8"
)

// RedactEmail masks an email address for safe logging.
// "ada.lovelace@example.com" → "ad***@example.com"
// Local parts of two characters or fewer are fully masked.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactName keeps the first letter of each word of a person's name.
// "Ada Lovelace" → "A*** L***"
func RedactName(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		words[i] = string(r) + "***"
	}
	return strings.Join(words, " ")
}
