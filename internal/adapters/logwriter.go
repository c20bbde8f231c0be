package adapters

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ctagard/lodeb/internal/logging"
)

// logWriter forwards an adapter's stderr to the logger, one record per line
type logWriter struct {
	log    *slog.Logger
	source string

	mu  sync.Mutex
	buf []byte
}

func newLogWriter(log *slog.Logger, path string) *logWriter {
	return &logWriter{log: logging.OrDefault(log), source: filepath.Base(path)}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf[:i], "\r")
		if len(line) > 0 {
			w.log.Debug("adapter stderr", "adapter", w.source, "line", string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
