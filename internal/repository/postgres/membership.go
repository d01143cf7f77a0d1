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

const memberColumns = `user_id, role, last_read_message_id, last_read_at, is_muted, joined_at`

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func scanMember(conv models.Target, row scanner) (*models.Member, error) {
	m := models.Member{Conversation: conv}
	var role string
	if err := row.Scan(&m.UserID, &role, &m.LastReadMessageID, &m.LastReadAt, &m.IsMuted, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}

func (s *MembershipStore) Add(ctx context.Context, conv models.Target, userID uuid.UUID, role models.Role) (*models.Member, error) {
	table, column, err := memberTable(conv)
	if err != nil {
		return nil, err
	}
	// No ON CONFLICT here: a duplicate membership is reported to the caller.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING %s`, table, column, memberColumns)

	m, err := scanMember(conv, s.pool.QueryRow(ctx, query, conv.ID(), userID, string(role)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) Remove(ctx context.Context, conv models.Target, userID uuid.UUID) error {
	table, column, err := memberTable(conv)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, table, column)

	tag, err := s.pool.Exec(ctx, query, conv.ID(), userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *MembershipStore) Get(ctx context.Context, conv models.Target, userID uuid.UUID) (*models.Member, error) {
	table, column, err := memberTable(conv)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND user_id = $2`, memberColumns, table, column)

	m, err := scanMember(conv, s.pool.QueryRow(ctx, query, conv.ID(), userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) List(ctx context.Context, conv models.Target) ([]models.Member, error) {
	table, column, err := memberTable(conv)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY joined_at, user_id`, memberColumns, table, column)

	rows, err := s.pool.Query(ctx, query, conv.ID())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		m, err := scanMember(conv, rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

// AdvanceReadPointer relies on GREATEST so concurrent calls commute: the
// pointer ends at the largest id whatever order they land in.
func (s *MembershipStore) AdvanceReadPointer(ctx context.Context, conv models.Target, userID uuid.UUID, messageID int64) (*models.Member, error) {
	table, column, err := memberTable(conv)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET last_read_message_id = GREATEST(last_read_message_id, $3),
		    last_read_at = now()
		WHERE %s = $1 AND user_id = $2
		RETURNING %s`, table, column, memberColumns)

	m, err := scanMember(conv, s.pool.QueryRow(ctx, query, conv.ID(), userID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("advance read pointer: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) SetMuted(ctx context.Context, conv models.Target, userID uuid.UUID, muted bool) (*models.Member, error) {
	table, column, err := memberTable(conv)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET is_muted = $3
		WHERE %s = $1 AND user_id = $2
		RETURNING %s`, table, column, memberColumns)

	m, err := scanMember(conv, s.pool.QueryRow(ctx, query, conv.ID(), userID, muted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("set muted: %w", err)
	}
	return m, nil
}
