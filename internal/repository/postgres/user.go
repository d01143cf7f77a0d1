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

// UserStore reads the users table owned by the identity service. The engine
// never writes it; it only rejects ids from other tenants.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, display_name, created_at
		FROM users
		WHERE tenant_id = $1 AND id = $2`, tenantID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// MissingFromTenant anti-joins the ids against the tenant's users.
// WITH ORDINALITY keeps the caller's order.
func (s *UserStore) MissingFromTenant(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ids.id
		FROM unnest($2::uuid[]) WITH ORDINALITY AS ids(id, pos)
		LEFT JOIN users u ON u.id = ids.id AND u.tenant_id = $1
		WHERE u.id IS NULL
		ORDER BY ids.pos`, tenantID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("check tenant users: %w", err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("check tenant users: %w", err)
	}
	return missing, nil
}
