package bridge

import (
	"context"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
)

// Result is the one shot answer produced in buffered mode.
type Result struct {
	Message string           `json:"message"`
	Sources []model.Citation `json:"sources"`
}

type discardSink struct{}

func (discardSink) Open() error                         { return nil }
func (discardSink) WriteFragment(string) error          { return nil }
func (discardSink) WriteSources([]model.Citation) error { return nil }
func (discardSink) WriteDone() error                    { return nil }
func (discardSink) WriteError(any) error                { return nil }
func (discardSink) Close() error                        { return nil }

// Collect waits for src to finish and resolves its whole answer. A failed
// generation returns a *GenerationError.
func Collect(ctx context.Context, src Source, opts ...Option) (Result, Summary, error) {
	summary, err := NewSession(opts...).Run(ctx, src, discardSink{})
	if err != nil {
		return Result{}, summary, err
	}

	sources := summary.Sources
	if sources == nil {
		sources = []model.Citation{}
	}

	return Result{Message: summary.Text, Sources: sources}, summary, nil
}
