package record

import (
	"bytes"
	"sync"

	logx "streamwatch/pkg/logx"
)

// lineWriter turns process output into per-line debug log entries. Partial
// lines are buffered until the next newline arrives.
type lineWriter struct {
	mu     sync.Mutex
	log    logx.Logger
	stream string
	buf    bytes.Buffer
}

func newLineWriter(log logx.Logger, stream string) *lineWriter {
	return &lineWriter{log: log, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			w.buf.Write(p)
			break
		}
		w.buf.Write(p[:idx])
		line := bytes.TrimSpace(w.buf.Bytes())
		if len(line) > 0 {
			w.log.Debug(string(line), logx.String("stream", w.stream))
		}
		w.buf.Reset()
		p = p[idx+1:]
	}
	return total, nil
}
