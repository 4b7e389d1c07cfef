package logger

import "strings"

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

var allowedStatus = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"error":        "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rejected":     "rejected",
	"stale":        "stale",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
}

var allowedOutcome = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"cancelled":    "cancelled",
	"rate_limited": "rate_limited",
}

// allowedStep mirrors the survey step kinds reported by the progression engine.
var allowedStep = map[string]string{
	"question":   "question",
	"checkpoint": "checkpoint",
	"completed":  "completed",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// enumRule maps raw values of an enumerated field onto their canonical form.
// Unknown values are dropped unless keepUnknown is set.
type enumRule struct {
	table       map[string]string
	keepUnknown bool
}

func (r enumRule) normalize(raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := r.table[raw]; ok {
		return mapped, true
	}
	return raw, false
}

var enumRules = map[string]enumRule{
	"status":  {table: allowedStatus, keepUnknown: true},
	"outcome": {table: allowedOutcome},
	"step":    {table: allowedStep},
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"run_id",
	"state",
	"question_id",
	"step",
	"response_id",
	"age_bracket",
	"bucket_date",
	"daily_users",
	"weekly_users",
	"monthly_users",
	"daily_surveys",
	"weekly_surveys",
	"monthly_surveys",
	"messages",
	"kb",
	"count",
	"key",
	"category",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"file",
	"delivered",
	"failed",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
	"collapsed",
	"repeats",
	"pending_count",
}
