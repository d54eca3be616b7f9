package logger

import (
	"regexp"
	"strings"
)

const redacted = "[redacted]"

// secretKeys are replaced wholesale whatever their value.
var secretKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"client_secret": {},
	"password":      {},
	"authorization": {},
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)

// MaskEmail keeps the first rune of the local part and the domain:
// "jane.doe@example.com" becomes "j***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return redacted
	}
	first := []rune(email[:at])[0]
	return string(first) + "***" + email[at:]
}

// redact hides credentials by key and masks email addresses in every
// string value, error texts included.
func redact(fields map[string]any) {
	for k, v := range fields {
		if _, ok := secretKeys[k]; ok {
			fields[k] = redacted
			continue
		}
		if s, ok := v.(string); ok && strings.Contains(s, "@") {
			fields[k] = emailPattern.ReplaceAllStringFunc(s, MaskEmail)
		}
	}
}
