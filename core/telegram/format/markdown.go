// Package format escapes user and catalog text for Telegram MarkdownV2.
package format

import "strings"

var (
	mdV2 = strings.NewReplacer(
		`\`, `\\`, `_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
		`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`, `=`, `\=`,
		`|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
	)
	// Inside (...) of an inline link only ')' and '\' are special.
	mdV2URL = strings.NewReplacer(`\`, `\\`, `)`, `\)`)
	// Inside `...` only '`' and '\' are special.
	mdV2Code = strings.NewReplacer(`\`, `\\`, "`", "\\`")
)

// MDV2 escapes every MarkdownV2 control character in text.
func MDV2(text string) string {
	return mdV2.Replace(text)
}

// Link renders an inline link. label must already be escaped.
func Link(label, url string) string {
	return "[" + label + "](" + mdV2URL.Replace(strings.TrimSpace(url)) + ")"
}

// Code renders text as an inline code span.
func Code(text string) string {
	return "`" + mdV2Code.Replace(text) + "`"
}
