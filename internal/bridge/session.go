package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s >= StateCompleted
}

// SourceAccounting decides how successive Sources events are counted.
type SourceAccounting int

const (
	// Incremental adds each payload to the running total.
	Incremental SourceAccounting = iota
	// Cumulative treats the latest payload as the full list so far.
	Cumulative
)

var (
	errUnterminated = errors.New("generation source closed without a terminal event")

	// ErrDeadline is the failure detail reported when a session outlives its
	// context deadline.
	ErrDeadline = errors.New("generation timed out")
)

type (
	// Summary is what the session observed by the time it ended.
	Summary struct {
		SessionID string
		State     State
		Text      string
		// Sources is the latest sources payload.
		Sources []model.Citation
		// AllSources holds every citation according to the accounting mode.
		AllSources   []model.Citation
		SourceCount  int
		HasContent   bool
		MessageChars int
		Duration     time.Duration
	}

	// Callbacks run after the final frame and the close, with a context that
	// is no longer tied to the client.
	Callbacks struct {
		OnComplete func(ctx context.Context, summary Summary)
		OnError    func(ctx context.Context, err error, summary Summary)
	}

	// Sink is the write side of a session. Close is called exactly once.
	Sink interface {
		Open() error
		WriteFragment(text string) error
		WriteSources(citations []model.Citation) error
		WriteDone() error
		WriteError(detail any) error
		Close() error
	}

	Option func(*Session)

	// Session is the state machine for one generation. It is single use.
	Session struct {
		id         string
		accounting SourceAccounting
		callbacks  Callbacks
		logger     logger.Logger

		mu               sync.Mutex
		state            State
		text             strings.Builder
		latest           []model.Citation
		all              []model.Citation
		sourceCount      int
		hasContent       bool
		closed           bool
		sideEffectsFired bool
		startedAt        time.Time
	}
)

func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

func WithAccounting(a SourceAccounting) Option {
	return func(s *Session) {
		s.accounting = a
	}
}

func WithCallbacks(c Callbacks) Option {
	return func(s *Session) {
		s.callbacks = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l.Component("stream_bridge")
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		logger: logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Run attaches to src and pumps its events into sink until a terminal event,
// a write failure or ctx cancellation, whichever is observed first. It
// returns nil on completion, a *GenerationError (also for an expired
// deadline), a *TransportError or the cancellation error.
func (s *Session) Run(ctx context.Context, src Source, sink Sink) (Summary, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()

		return s.summary(), errors.New("session already used")
	}

	s.state = StateStreaming
	s.startedAt = time.Now()
	s.mu.Unlock()

	defer src.Detach()

	if err := sink.Open(); err != nil {
		return s.failTransport(ctx, sink, err)
	}

	events := src.Events()

	for {
		select {
		case <-ctx.Done():
			return s.interrupt(ctx, sink)

		case ev, ok := <-events:
			if ctx.Err() != nil {
				return s.interrupt(ctx, sink)
			}

			if !ok {
				return s.fail(ctx, sink, &GenerationError{Detail: errUnterminated.Error()})
			}

			if summary, done, err := s.handle(ctx, sink, ev); done {
				return summary, err
			}
		}
	}
}

// handle reports done once the session reached a terminal state.
func (s *Session) handle(ctx context.Context, sink Sink, ev Event) (Summary, bool, error) {
	var (
		summary Summary
		err     error
	)

	switch e := ev.(type) {
	case Fragment:
		s.addFragment(e.Text)

		if writeErr := sink.WriteFragment(e.Text); writeErr != nil {
			summary, err = s.failTransport(ctx, sink, writeErr)

			return summary, true, err
		}

		return summary, false, nil

	case Sources:
		s.addSources(e.Citations)

		if writeErr := sink.WriteSources(e.Citations); writeErr != nil {
			summary, err = s.failTransport(ctx, sink, writeErr)

			return summary, true, err
		}

		return summary, false, nil

	case Done:
		summary, err = s.complete(ctx, sink)

	case Failed:
		summary, err = s.fail(ctx, sink, &GenerationError{Detail: e.Detail})

	default:
		return summary, false, nil
	}

	return summary, true, err
}

func (s *Session) addFragment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.text.WriteString(text)
	s.hasContent = true
}

func (s *Session) addSources(citations []model.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = citations

	switch s.accounting {
	case Cumulative:
		s.all = citations
		s.sourceCount = len(citations)
	default:
		s.all = append(s.all, citations...)
		s.sourceCount += len(citations)
	}
}

func (s *Session) complete(ctx context.Context, sink Sink) (Summary, error) {
	if err := sink.WriteDone(); err != nil {
		return s.failTransport(ctx, sink, err)
	}

	s.transition(StateCompleted)
	s.close(sink)

	summary := s.summary()

	if s.markSideEffects() && s.callbacks.OnComplete != nil {
		s.callbacks.OnComplete(context.WithoutCancel(ctx), summary)
	}

	return summary, nil
}

// fail writes the error frame for a failed generation.
func (s *Session) fail(ctx context.Context, sink Sink, genErr *GenerationError) (Summary, error) {
	if writeErr := sink.WriteError(genErr.Detail); writeErr != nil {
		s.logger.Warn().Err(writeErr).Str("session_id", s.id).Msg("writing error frame failed")
	}

	return s.terminateWithError(ctx, sink, genErr)
}

// failTransport ends the session after a write failure; no further frame is
// attempted.
func (s *Session) failTransport(ctx context.Context, sink Sink, writeErr error) (Summary, error) {
	return s.terminateWithError(ctx, sink, &TransportError{Err: writeErr})
}

func (s *Session) terminateWithError(ctx context.Context, sink Sink, err error) (Summary, error) {
	s.transition(StateFailed)
	s.close(sink)

	summary := s.summary()

	if s.markSideEffects() && s.callbacks.OnError != nil {
		s.callbacks.OnError(context.WithoutCancel(ctx), err, summary)
	}

	return summary, err
}

// interrupt ends a session whose context is done. A deadline is a failure
// the client still hears about; anything else means the client went away.
func (s *Session) interrupt(ctx context.Context, sink Sink) (Summary, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return s.fail(ctx, sink, &GenerationError{Detail: ErrDeadline.Error(), Cause: ErrDeadline})
	}

	return s.cancel(sink, ctx.Err())
}

func (s *Session) cancel(sink Sink, cause error) (Summary, error) {
	s.transition(StateCancelled)
	s.close(sink)

	s.logger.Debug().Str("session_id", s.id).Msg("client went away before the generation finished")

	return s.summary(), cause
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.terminal() {
		s.state = to
	}
}

func (s *Session) close(sink Sink) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}

	s.closed = true
	s.mu.Unlock()

	if err := sink.Close(); err != nil {
		s.logger.Debug().Err(err).Str("session_id", s.id).Msg("closing sink failed")
	}
}

func (s *Session) markSideEffects() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sideEffectsFired || s.state == StateCancelled {
		return false
	}

	s.sideEffectsFired = true

	return true
}

func (s *Session) summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.text.String()

	var duration time.Duration
	if !s.startedAt.IsZero() {
		duration = time.Since(s.startedAt)
	}

	return Summary{
		SessionID:    s.id,
		State:        s.state,
		Text:         text,
		Sources:      s.latest,
		AllSources:   s.all,
		SourceCount:  s.sourceCount,
		HasContent:   s.hasContent,
		MessageChars: utf8.RuneCountInString(text),
		Duration:     duration,
	}
}
