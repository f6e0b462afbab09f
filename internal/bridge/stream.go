package bridge

import (
	"errors"
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/goccy/go-json"
)

// Frame is one NDJSON line on the wire.
type Frame struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// Framing names the frames a client protocol expects.
type Framing struct {
	FragmentType string
	SourcesType  string
	EndType      string
	// InitData, when set, is sent in an "init" frame right after the headers.
	InitData string
	// MessageID is attached to fragment, sources and end frames.
	MessageID string
}

// ChatFraming streams message/sources frames ending with messageEnd.
func ChatFraming(messageID string) Framing {
	return Framing{
		FragmentType: "message",
		SourcesType:  "sources",
		EndType:      "messageEnd",
		MessageID:    messageID,
	}
}

// SearchFraming streams response/sources frames between init and done.
func SearchFraming() Framing {
	return Framing{
		FragmentType: "response",
		SourcesType:  "sources",
		EndType:      "done",
		InitData:     "Stream connected",
	}
}

var errStreamClosed = errors.New("stream already closed")

// StreamWriter is a Sink writing flushed NDJSON frames to an HTTP response.
// Each frame gets its own write deadline so a stalled client turns into a
// write error instead of blocking the generation.
type StreamWriter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	framing      Framing
	frameTimeout time.Duration
	closed       bool
}

func NewStreamWriter(w http.ResponseWriter, framing Framing, frameTimeout time.Duration) *StreamWriter {
	return &StreamWriter{
		w:            w,
		rc:           http.NewResponseController(w),
		framing:      framing,
		frameTimeout: frameTimeout,
	}
}

func (s *StreamWriter) Open() error {
	header := s.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Connection", "keep-alive")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("X-Accel-Buffering", "no")

	s.w.WriteHeader(http.StatusOK)

	if s.framing.InitData != "" {
		return s.write(Frame{Type: "init", Data: s.framing.InitData})
	}

	return s.flush()
}

func (s *StreamWriter) WriteFragment(text string) error {
	return s.write(Frame{Type: s.framing.FragmentType, Data: text, MessageID: s.framing.MessageID})
}

func (s *StreamWriter) WriteSources(citations []model.Citation) error {
	return s.write(Frame{Type: s.framing.SourcesType, Data: citations, MessageID: s.framing.MessageID})
}

func (s *StreamWriter) WriteDone() error {
	return s.write(Frame{Type: s.framing.EndType, MessageID: s.framing.MessageID})
}

func (s *StreamWriter) WriteError(detail any) error {
	return s.write(Frame{Type: "error", Data: detail})
}

func (s *StreamWriter) Close() error {
	if s.closed {
		return errStreamClosed
	}

	s.closed = true

	if s.frameTimeout > 0 {
		_ = s.rc.SetWriteDeadline(time.Time{})
	}

	return nil
}

func (s *StreamWriter) write(frame Frame) error {
	if s.closed {
		return errStreamClosed
	}

	line, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	if s.frameTimeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.frameTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		return err
	}

	return s.flush()
}

func (s *StreamWriter) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	return nil
}
