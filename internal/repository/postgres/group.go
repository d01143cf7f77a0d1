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

const groupColumns = `id, tenant_id, name, is_dm, created_by, created_at, updated_at`

type GroupStore struct {
	pool *pgxpool.Pool
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

func scanGroup(row scanner) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.IsDM, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) Create(ctx context.Context, in *models.Group, members []models.NewMember) (*models.Group, error) {
	var created *models.Group
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		g, err := scanGroup(tx.QueryRow(ctx, `
			INSERT INTO chat_groups (tenant_id, name, is_dm, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING `+groupColumns,
			in.TenantID, in.Name, in.IsDM, in.CreatedBy,
		))
		if err != nil {
			return err
		}
		created = g

		// A batch keeps enrollment to one round trip however many members.
		batch := &pgx.Batch{}
		for _, m := range members {
			batch.Queue(`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
				g.ID, m.UserID, string(m.Role))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return created, nil
}

func (s *GroupStore) GetByID(ctx context.Context, tenantID uuid.UUID, groupID uuid.UUID) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM chat_groups WHERE id = $1 AND tenant_id = $2`

	g, err := scanGroup(s.pool.QueryRow(ctx, query, groupID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) ListForUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, f models.GroupFilter) ([]models.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM chat_groups g
		WHERE g.tenant_id = $1
		  AND EXISTS (SELECT 1 FROM group_members m WHERE m.group_id = g.id AND m.user_id = $2)
		  AND ($3::boolean IS NULL OR g.is_dm = $3::boolean)
		ORDER BY g.created_at DESC`

	rows, err := s.pool.Query(ctx, query, tenantID, userID, f.IsDM)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) FindDM(ctx context.Context, tenantID uuid.UUID, a, b uuid.UUID) (*models.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM chat_groups g
		WHERE g.tenant_id = $1 AND g.is_dm
		  AND EXISTS (SELECT 1 FROM group_members m WHERE m.group_id = g.id AND m.user_id = $2)
		  AND EXISTS (SELECT 1 FROM group_members m WHERE m.group_id = g.id AND m.user_id = $3)
		ORDER BY g.created_at
		LIMIT 1`

	g, err := scanGroup(s.pool.QueryRow(ctx, query, tenantID, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find dm: %w", err)
	}
	return g, nil
}
