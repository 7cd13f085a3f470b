package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
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

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"tick_id",
	"chat_id",
	"handler",
	"day",
	"plan_days",
	"outcome",
	"duration_ms",
	"subscribers",
	"due",
	"sent",
	"failed",
	"completed",
	"lang",
	"send_time",
	"payload",
	"mode",
	"listen",
	"public_url",
	"db",
	"path",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempt",
	"attempts",
	"backoff_ms",
}
