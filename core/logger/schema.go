package logger

import "strings"

// Level names as they appear in the "level" field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Canonical values for the "status" field. Unknown statuses pass through.
var statusAliases = map[string]string{
	"ok":        "ok",
	"success":   "ok",
	"error":     "error",
	"fail":      "fail",
	"failed":    "fail",
	"skip":      "skip",
	"retry":     "retry",
	"timeout":   "timeout",
	"cancelled": "cancelled",
	"canceled":  "cancelled",
	"fallback":  "fallback",
}

// Allowed values for the "outcome" field of handler summaries. Anything else
// is dropped.
var outcomes = map[string]struct{}{
	"ok":      {},
	"fail":    {},
	"apology": {},
	"no_chat": {},
	"skip":    {},
}

// Fields that may carry user or model text and are cut to contentLimit runes.
var contentFields = map[string]struct{}{
	"payload":    {},
	"prompt":     {},
	"completion": {},
	"err":        {},
	"error":      {},
	"reason":     {},
}

const contentLimit = 256

func levelName(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "", "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return strings.ToUpper(level)
}

func canonicalStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if mapped, ok := statusAliases[s]; ok {
		return mapped
	}
	return s
}

func validOutcome(outcome string) (string, bool) {
	o := strings.ToLower(strings.TrimSpace(outcome))
	_, ok := outcomes[o]
	return o, ok
}

// defaultKeyOrder puts correlation fields first, then the dialog and pipeline
// fields, then transport details. Keys not listed follow in sorted order.
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
	"chat_id",
	"user_id",
	"dialog_event",
	"handler",
	"outcome",
	"state",
	"category",
	"payload_kind",
	"step",
	"topic",
	"fallback",
	"provider",
	"model",
	"budget",
	"chars",
	"turn_messages",
	"duration_ms",
	"action",
	"endpoint",
	"attempt",
	"attempts",
	"elapsed_ms",
	"cb_key",
	"payload",
	"kind",
	"mode",
	"listen",
	"path",
	"public_url",
	"backend",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"error",
	"error_kind",
	"cause",
}
