package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// FlushableResponseWriter records the status and size of a response while
// keeping flushing, hijacking and deadline control reachable.
type FlushableResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten uint64
	wroteHeader  bool
}

// NewFlushableResponseWriter does not wrap a writer twice.
func NewFlushableResponseWriter(w http.ResponseWriter) *FlushableResponseWriter {
	if frw, ok := w.(*FlushableResponseWriter); ok {
		return frw
	}

	return &FlushableResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *FlushableResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *FlushableResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += uint64(n)

	return n, err
}

func (w *FlushableResponseWriter) StatusCode() int {
	return w.statusCode
}

func (w *FlushableResponseWriter) BytesWritten() uint64 {
	return w.bytesWritten
}

func (w *FlushableResponseWriter) WroteHeader() bool {
	return w.wroteHeader
}

func (w *FlushableResponseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *FlushableResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

// Unwrap lets http.ResponseController reach the connection for per frame
// write deadlines.
func (w *FlushableResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
