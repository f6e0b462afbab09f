// Package ports defines interface contracts for external dependencies.
package ports

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
)

// HistoryRepository persists chats and their messages.
type HistoryRepository interface {
	// FindChat returns model.ErrChatNotFound when the chat does not exist.
	FindChat(ctx context.Context, chatID string) (*model.Chat, error)

	// SaveUserTurn creates the chat if needed and stores the user message.
	// When the message already exists, every later message is deleted so the
	// turn can be regenerated.
	SaveUserTurn(ctx context.Context, chat model.Chat, message model.Message) error

	SaveMessage(ctx context.Context, message model.Message) error

	CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int, error)

	Ping(ctx context.Context) error
}

type UsageRecorder interface {
	Record(ctx context.Context, event model.UsageEvent) error
}
