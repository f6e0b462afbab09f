package repos

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
)

var (
	_ ports.HistoryRepository = DisabledHistory{}
	_ ports.UsageRecorder     = DisabledUsage{}
)

// DisabledHistory stands in when no database is configured: chats are never
// found, writes are dropped and every guest starts the window with zero
// messages.
type DisabledHistory struct{}

func (DisabledHistory) FindChat(context.Context, string) (*model.Chat, error) {
	return nil, model.ErrChatNotFound
}

func (DisabledHistory) SaveUserTurn(context.Context, model.Chat, model.Message) error {
	return nil
}

func (DisabledHistory) SaveMessage(context.Context, model.Message) error {
	return nil
}

func (DisabledHistory) CountUserMessagesSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (DisabledHistory) Ping(context.Context) error {
	return nil
}

// DisabledUsage drops every usage event.
type DisabledUsage struct{}

func (DisabledUsage) Record(context.Context, model.UsageEvent) error {
	return nil
}
