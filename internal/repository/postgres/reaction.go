package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echothread/internal/models"
)

const reactionColumns = `id, tenant_id, message_id, user_id, emoji, created_at`

// addAttempts bounds the insert/select loop in Add. It only repeats when a
// concurrent remove deletes the row between our two statements.
const addAttempts = 3

type ReactionStore struct {
	pool *pgxpool.Pool
}

func NewReactionStore(pool *pgxpool.Pool) *ReactionStore {
	return &ReactionStore{pool: pool}
}

func scanReaction(row scanner) (*models.Reaction, error) {
	var r models.Reaction
	if err := row.Scan(&r.ID, &r.TenantID, &r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Add leans on the unique (tenant, message, user, emoji) key: of two racing
// inserts one wins, the other sees no RETURNING row and reads the winner.
func (s *ReactionStore) Add(ctx context.Context, in *models.Reaction) (*models.Reaction, bool, error) {
	for attempt := 0; attempt < addAttempts; attempt++ {
		r, err := scanReaction(s.pool.QueryRow(ctx, `
			INSERT INTO message_reactions (tenant_id, message_id, user_id, emoji)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, message_id, user_id, emoji) DO NOTHING
			RETURNING `+reactionColumns,
			in.TenantID, in.MessageID, in.UserID, in.Emoji))
		if err == nil {
			return r, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("insert reaction: %w", err)
		}

		r, err = scanReaction(s.pool.QueryRow(ctx, `
			SELECT `+reactionColumns+`
			FROM message_reactions
			WHERE tenant_id = $1 AND message_id = $2 AND user_id = $3 AND emoji = $4`,
			in.TenantID, in.MessageID, in.UserID, in.Emoji))
		if err == nil {
			return r, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("get reaction: %w", err)
		}
	}
	return nil, false, fmt.Errorf("insert reaction: gave up after %d attempts", addAttempts)
}

func (s *ReactionStore) GetByID(ctx context.Context, tenantID uuid.UUID, reactionID int64) (*models.Reaction, error) {
	query := `SELECT ` + reactionColumns + ` FROM message_reactions WHERE tenant_id = $1 AND id = $2`

	r, err := scanReaction(s.pool.QueryRow(ctx, query, tenantID, reactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reaction: %w", err)
	}
	return r, nil
}

func (s *ReactionStore) Delete(ctx context.Context, tenantID uuid.UUID, reactionID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM message_reactions WHERE tenant_id = $1 AND id = $2`, tenantID, reactionID)
	if err != nil {
		return false, fmt.Errorf("delete reaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ReactionStore) DeleteByKey(ctx context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID, emoji string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM message_reactions
		WHERE tenant_id = $1 AND message_id = $2 AND user_id = $3 AND emoji = $4`,
		tenantID, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("delete reaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ReactionStore) ListByMessages(ctx context.Context, tenantID uuid.UUID, messageIDs []int64) ([]models.Reaction, error) {
	reactions := make([]models.Reaction, 0)
	if len(messageIDs) == 0 {
		return reactions, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+reactionColumns+`
		FROM message_reactions
		WHERE tenant_id = $1 AND message_id = ANY($2)
		ORDER BY id`, tenantID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
