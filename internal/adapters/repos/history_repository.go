package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	chatsTable    = "chats"
	messagesTable = "messages"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	// PoolOps is the subset of pgxpool.Pool used by the repositories.
	PoolOps interface {
		Begin(ctx context.Context) (pgx.Tx, error)
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Ping(ctx context.Context) error
	}

	HistoryRepository struct {
		pool   PoolOps
		logger logger.Logger
	}

	chatRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		Title     string    `db:"title"`
		FocusMode string    `db:"focus_mode"`
		Files     []byte    `db:"files"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func NewHistoryRepository(pool PoolOps, log logger.Logger) *HistoryRepository {
	return &HistoryRepository{
		pool:   pool,
		logger: log.Component("history_repository"),
	}
}

func (r *HistoryRepository) FindChat(ctx context.Context, chatID string) (*model.Chat, error) {
	query, args, err := psql.Select("id", "user_id", "title", "focus_mode", "files", "created_at").
		From(chatsTable).
		Where(sq.Eq{"id": chatID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var row chatRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, model.ErrChatNotFound
		}

		return nil, fmt.Errorf("finding chat: %w", err)
	}

	chat := &model.Chat{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		FocusMode: row.FocusMode,
		CreatedAt: row.CreatedAt,
	}

	if len(row.Files) > 0 {
		if err := json.Unmarshal(row.Files, &chat.Files); err != nil {
			return nil, fmt.Errorf("decoding chat files: %w", err)
		}
	}

	return chat, nil
}

// SaveUserTurn runs in one transaction: upsert the chat (refreshing its
// files for the owner), then insert the user message or, when it already
// exists, drop everything after it.
func (r *HistoryRepository) SaveUserTurn(ctx context.Context, chat model.Chat, message model.Message) (err error) {
	files, err := encodeFiles(chat.Files)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	upsert, args, err := psql.Insert(chatsTable).
		Columns("id", "user_id", "title", "focus_mode", "files", "created_at").
		Values(chat.ID, chat.UserID, chat.Title, chat.FocusMode, files, chat.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET files = EXCLUDED.files WHERE chats.user_id = EXCLUDED.user_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build chat upsert: %w", err)
	}

	if _, err = tx.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("saving chat: %w", err)
	}

	lookup, args, err := psql.Select("id").
		From(messagesTable).
		Where(sq.Eq{"chat_id": message.ChatID}).
		Where(sq.Eq{"message_id": message.MessageID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build message lookup: %w", err)
	}

	var existingID int64

	err = tx.QueryRow(ctx, lookup, args...).Scan(&existingID)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = r.insertMessage(ctx, tx, message)
	case err != nil:
		err = fmt.Errorf("looking up message: %w", err)
	default:
		err = r.rewindAfter(ctx, tx, message.ChatID, existingID)
	}

	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *HistoryRepository) SaveMessage(ctx context.Context, message model.Message) error {
	return r.insertMessage(ctx, r.pool, message)
}

func (r *HistoryRepository) CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From(messagesTable + " m").
		Join(chatsTable + " c ON c.id = m.chat_id").
		Where("c.user_id = ? AND m.role = ? AND m.created_at >= ?", userID, string(model.RoleUser), since).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting user messages: %w", err)
	}

	return count, nil
}

func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *HistoryRepository) insertMessage(ctx context.Context, db execer, message model.Message) error {
	var sources []byte
	if len(message.Sources) > 0 {
		encoded, err := json.Marshal(message.Sources)
		if err != nil {
			return fmt.Errorf("encoding sources: %w", err)
		}

		sources = encoded
	}

	query, args, err := psql.Insert(messagesTable).
		Columns("chat_id", "message_id", "role", "content", "sources", "created_at").
		Values(message.ChatID, message.MessageID, string(message.Role), message.Content, sources, message.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving %s message: %w", message.Role, err)
	}

	return nil
}

func (r *HistoryRepository) rewindAfter(ctx context.Context, tx pgx.Tx, chatID string, id int64) error {
	query, args, err := psql.Delete(messagesTable).
		Where(sq.Eq{"chat_id": chatID}).
		Where(sq.Gt{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("rewinding chat: %w", err)
	}

	r.logger.Debug().
		Str("chat_id", chatID).
		Int64("removed", tag.RowsAffected()).
		Msg("regenerating from an existing message")

	return nil
}

func encodeFiles(files []string) ([]byte, error) {
	if files == nil {
		files = []string{}
	}

	encoded, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encoding chat files: %w", err)
	}

	return encoded, nil
}
