package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

const mentionColumns = `tenant_id, message_id, mentioned_user_id, is_read, read_at, created_at`

type MentionStore struct {
	pool *pgxpool.Pool
}

func NewMentionStore(pool *pgxpool.Pool) *MentionStore {
	return &MentionStore{pool: pool}
}

func scanMention(row scanner) (*models.Mention, error) {
	var m models.Mention
	if err := row.Scan(&m.TenantID, &m.MessageID, &m.MentionedUserID, &m.IsRead, &m.ReadAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MentionStore) ListForUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Mention, error) {
	query := `
		SELECT ` + mentionColumns + `
		FROM message_mentions
		WHERE tenant_id = $1 AND mentioned_user_id = $2 AND (NOT $3 OR NOT is_read)
		ORDER BY message_id DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query, tenantID, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	mentions := make([]models.Mention, 0)
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		mentions = append(mentions, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return mentions, nil
}

func (s *MentionStore) MarkRead(ctx context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID) (*models.Mention, error) {
	query := `
		UPDATE message_mentions
		SET is_read = true, read_at = COALESCE(read_at, now())
		WHERE tenant_id = $1 AND message_id = $2 AND mentioned_user_id = $3
		RETURNING ` + mentionColumns

	m, err := scanMention(s.pool.QueryRow(ctx, query, tenantID, messageID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("mark mention read: %w", err)
	}
	return m, nil
}
