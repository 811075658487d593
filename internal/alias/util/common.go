package util

import (
	"io"
	"log/slog"
)

func CloseQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("close", "err", err)
	}
}
