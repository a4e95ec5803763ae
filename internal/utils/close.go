package utils

import (
	"io"
	"log/slog"
)

// CloseWithLog closes c and logs a failure instead of returning it. Used on
// deferred response-body closes where the primary error must not be
// overridden.
func CloseWithLog(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close stream body", "error", err.Error())
	}
}
