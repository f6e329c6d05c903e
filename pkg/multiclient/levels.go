package multiclient

import (
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// The MCP logging levels, as accepted by SetLoggingLevel. "notice" folds to
// "warning" and "alert"/"emergency" fold to "critical" before forwarding,
// mirroring the severity set slog can express.
var loggingLevelAliases = map[string]string{
	"debug":     "debug",
	"info":      "info",
	"notice":    "warning",
	"warning":   "warning",
	"error":     "error",
	"critical":  "critical",
	"alert":     "critical",
	"emergency": "critical",
}

func normalizeLoggingLevel(level string) (mcp.LoggingLevel, error) {
	folded, ok := loggingLevelAliases[level]
	if !ok {
		return "", fmt.Errorf("multiclient: %w %q", ErrInvalidLoggingLevel, level)
	}
	return mcp.LoggingLevel(folded), nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info", "notice":
		return slog.LevelInfo
	case "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
