// Package markdown formats text for the legacy Markdown parse mode that chat
// messages are sent in.
package markdown

import "strings"

var escaper = strings.NewReplacer("*", "\\*", "[", "\\[", "`", "\\`", "_", "\\_")

// Escape escapes the characters legacy Telegram Markdown treats as entity
// delimiters.
func Escape(s string) string {
	return escaper.Replace(s)
}
