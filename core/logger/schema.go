package logger

import (
	"slices"
	"strings"
)

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// vocabulary is the closed set of values of an enumerated field. Values
// outside it are dropped unless keepOthers is set.
type vocabulary struct {
	values     []string
	keepOthers bool
}

var enums = map[string]vocabulary{
	"status": {
		values:     []string{"ok", "fail", "error", "skip", "retry", "rate_limited", "cancelled", "uncertain"},
		keepOthers: true,
	},
	"cache":   {values: []string{"hit", "miss", "refresh", "stale"}},
	"outcome": {values: []string{"ok", "fail", "cancelled", "rate_limited"}},
}

func normalizeEnums(fields map[string]any) {
	for key, voc := range enums {
		s, ok := fields[key].(string)
		if !ok || s == "" {
			continue
		}
		s = strings.ToLower(s)
		if slices.Contains(voc.values, s) || voc.keepOthers {
			fields[key] = s
		} else {
			delete(fields, key)
		}
	}
}

// defaultKeyOrder puts correlation fields first, then the storefront
// identifiers, then errors. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"cache",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"category",
	"product_id",
	"order_id",
	"record_id",
	"step",
	"qty",
	"total",
	"balance",
	"users",
	"lines",
	"reason",
	"err",
	"err_code",
	"cause",
	"attempt",
	"attempts",
	"backoff_ms",
	"pending_count",
}
