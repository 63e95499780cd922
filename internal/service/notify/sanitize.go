package notify

import (
	"html"
	"strings"
	"unicode/utf8"
)

// toastMessageLimit is how many characters of a chat message a toast shows
const toastMessageLimit = 100

// sanitize escapes markup in text relayed from other users
func sanitize(s string) string {
	return html.EscapeString(s)
}

// truncate shortens escaped text to limit characters, marking the cut with
// an ellipsis. An entity is never split.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := string([]rune(s)[:limit])
	if amp := strings.LastIndexByte(cut, '&'); amp >= 0 && !strings.Contains(cut[amp:], ";") {
		cut = cut[:amp]
	}
	return cut + "..."
}
