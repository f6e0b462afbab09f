package middleware

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/andybalholm/brotli"
	"go.opentelemetry.io/otel/attribute"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"

	compressionAlgorithmKey = "compression.algorithm"

	httpCompressionTotal         = "http_compression_total"
	httpCompressionOriginalBytes = "http_compression_original_bytes"
)

// compressibleTypes never includes text/event-stream: streamed frames must
// reach the client as soon as they are flushed.
var compressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"text/plain",
}

// serverPreference breaks ties between equal client quality values.
var serverPreference = []string{encodingBrotli, encodingGzip}

type encoderPools struct {
	gzip   map[int]*sync.Pool
	brotli map[int]*sync.Pool
	mu     sync.Mutex
}

var pools = &encoderPools{
	gzip:   map[int]*sync.Pool{},
	brotli: map[int]*sync.Pool{},
}

func (p *encoderPools) get(encoding string, level int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	byLevel := p.gzip
	if encoding == encodingBrotli {
		byLevel = p.brotli
	}

	if pool, ok := byLevel[level]; ok {
		return pool
	}

	pool := &sync.Pool{New: func() any {
		if encoding == encodingBrotli {
			return brotli.NewWriterLevel(io.Discard, level)
		}

		w, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}

		return w
	}}
	byLevel[level] = pool

	return pool
}

// Compression encodes JSON and text responses with brotli or gzip once they
// reach MinSize bytes. Smaller bodies and streams pass through untouched.
func Compression(cfg config.Compression, metricsClient metrics.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := selectEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" {
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			cw := &compressResponseWriter{
				ResponseWriter: w,
				encoding:       encoding,
				level:          cfg.Level,
				minSize:        cfg.MinSize,
				status:         http.StatusOK,
			}

			defer func() {
				_ = cw.Close()

				if cw.encoder != nil {
					attrs := attribute.String(compressionAlgorithmKey, encoding)
					metricsClient.Inc(r.Context(), httpCompressionTotal, int64(1), attrs)
					metricsClient.Inc(r.Context(), httpCompressionOriginalBytes, int64(cw.originalBytes), attrs)
				}
			}()

			next.ServeHTTP(cw, r)
		})
	}
}

// selectEncoding honours quality values and falls back to the server
// preference on ties. It returns "" when nothing supported is acceptable.
func selectEncoding(header string) string {
	if header == "" {
		return ""
	}

	best, bestQuality := "", 0.0

	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		quality := 1.0

		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(q, 64)
			if err != nil {
				continue
			}

			quality = parsed
		}

		candidates := []string{name}
		if name == "*" {
			candidates = serverPreference
		}

		for _, candidate := range candidates {
			if !slices.Contains(serverPreference, candidate) || quality <= 0 {
				continue
			}

			if quality > bestQuality || (quality == bestQuality && preferred(candidate, best)) {
				best, bestQuality = candidate, quality
			}
		}
	}

	return best
}

func preferred(candidate, current string) bool {
	if current == "" {
		return true
	}

	return slices.Index(serverPreference, candidate) < slices.Index(serverPreference, current)
}

type compressResponseWriter struct {
	http.ResponseWriter
	encoding string
	level    int
	minSize  int

	status        int
	headerPending bool
	passthrough   bool
	buf           []byte
	encoder       io.WriteCloser
	originalBytes int
	closed        bool
}

func (w *compressResponseWriter) WriteHeader(status int) {
	if w.headerPending || w.passthrough || w.encoder != nil {
		return
	}

	w.status = status

	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified ||
		w.Header().Get("Content-Encoding") != "" || !isCompressible(w.Header().Get("Content-Type")) {
		w.passthrough = true
		w.ResponseWriter.WriteHeader(status)

		return
	}

	w.headerPending = true
}

func (w *compressResponseWriter) Write(b []byte) (int, error) {
	if !w.headerPending && !w.passthrough && w.encoder == nil {
		w.WriteHeader(http.StatusOK)
	}

	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}

	w.originalBytes += len(b)

	if w.encoder != nil {
		return w.encoder.Write(b)
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) >= w.minSize {
		if err := w.startEncoding(); err != nil {
			return 0, err
		}
	}

	return len(b), nil
}

func (w *compressResponseWriter) startEncoding() error {
	w.Header().Set("Content-Encoding", w.encoding)
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)
	w.headerPending = false

	pool := pools.get(w.encoding, w.level)

	switch w.encoding {
	case encodingBrotli:
		bw := pool.Get().(*brotli.Writer)
		bw.Reset(w.ResponseWriter)
		w.encoder = &pooledBrotliWriter{Writer: bw, pool: pool}
	default:
		gw := pool.Get().(*gzip.Writer)
		gw.Reset(w.ResponseWriter)
		w.encoder = &pooledGzipWriter{Writer: gw, pool: pool}
	}

	buffered := w.buf
	w.buf = nil

	_, err := w.encoder.Write(buffered)

	return err
}

// flushPlain sends a body that stayed under the threshold as is.
func (w *compressResponseWriter) flushPlain() error {
	w.headerPending = false
	w.passthrough = true
	w.ResponseWriter.WriteHeader(w.status)

	if len(w.buf) == 0 {
		return nil
	}

	buffered := w.buf
	w.buf = nil

	_, err := w.ResponseWriter.Write(buffered)

	return err
}

func (w *compressResponseWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if w.encoder != nil {
		return w.encoder.Close()
	}

	if w.headerPending {
		return w.flushPlain()
	}

	return nil
}

func (w *compressResponseWriter) Flush() {
	if w.headerPending {
		_ = w.flushPlain()
	}

	if flusher, ok := w.encoder.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}

	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *compressResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func isCompressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")

	return slices.Contains(compressibleTypes, strings.ToLower(strings.TrimSpace(mediaType)))
}

type pooledGzipWriter struct {
	*gzip.Writer
	pool *sync.Pool
}

func (w *pooledGzipWriter) Close() error {
	err := w.Writer.Close()
	w.Writer.Reset(io.Discard)
	w.pool.Put(w.Writer)

	return err
}

type pooledBrotliWriter struct {
	*brotli.Writer
	pool *sync.Pool
}

func (w *pooledBrotliWriter) Close() error {
	err := w.Writer.Close()
	w.Writer.Reset(io.Discard)
	w.pool.Put(w.Writer)

	return err
}
