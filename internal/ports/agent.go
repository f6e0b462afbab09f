package ports

import (
	"context"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
)

// AnswerAgent starts generations. The returned source is owned by the caller,
// which must Detach it once it stops listening.
type AnswerAgent interface {
	Answer(ctx context.Context, req model.GenerationRequest) (bridge.Source, error)
	Suggest(ctx context.Context, history [][2]string, chatModel model.ModelRef) (bridge.Source, error)
	Ping(ctx context.Context) error
}

type SearchOptions struct {
	Engines  []string
	Language string
	PageNo   int
}

type SearchEngine interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]model.Article, error)
}
