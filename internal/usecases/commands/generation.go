package commands

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
)

var ErrGenerationConsumed = errors.New("generation already delivered")

// Generation is a started answer waiting for a delivery mode. Exactly one of
// Stream, Collect or Discard may be called.
type Generation struct {
	// MessageID identifies the assistant message being generated.
	MessageID string

	source  bridge.Source
	options []bridge.Option
	used    atomic.Bool
}

func newGeneration(messageID string, source bridge.Source, options ...bridge.Option) *Generation {
	return &Generation{
		MessageID: messageID,
		source:    source,
		options:   options,
	}
}

// Stream writes every event to sink as it arrives.
func (g *Generation) Stream(ctx context.Context, sink bridge.Sink) (bridge.Summary, error) {
	if !g.used.CompareAndSwap(false, true) {
		return bridge.Summary{}, ErrGenerationConsumed
	}

	return bridge.NewSession(g.options...).Run(ctx, g.source, sink)
}

// Collect waits for the whole answer.
func (g *Generation) Collect(ctx context.Context) (bridge.Result, error) {
	if !g.used.CompareAndSwap(false, true) {
		return bridge.Result{}, ErrGenerationConsumed
	}

	result, _, err := bridge.Collect(ctx, g.source, g.options...)

	return result, err
}

// Discard stops listening without delivering anything. No callback fires.
func (g *Generation) Discard() {
	if g.used.CompareAndSwap(false, true) {
		g.source.Detach()
	}
}
