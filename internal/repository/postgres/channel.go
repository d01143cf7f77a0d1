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

const channelColumns = `id, tenant_id, name, channel_type, description, is_read_only, is_archived,
	department_id, project_id, event_id, created_by, created_at, updated_at`

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func scanChannel(row scanner) (*models.Channel, error) {
	var ch models.Channel
	var channelType string
	err := row.Scan(
		&ch.ID,
		&ch.TenantID,
		&ch.Name,
		&channelType,
		&ch.Description,
		&ch.IsReadOnly,
		&ch.IsArchived,
		&ch.DepartmentID,
		&ch.ProjectID,
		&ch.EventID,
		&ch.CreatedBy,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ch.Type = models.ChannelType(channelType)
	return &ch, nil
}

// Create inserts the channel and its owner row in one transaction, so a
// channel never exists without an owner.
func (s *ChannelStore) Create(ctx context.Context, in *models.Channel) (*models.Channel, error) {
	var created *models.Channel
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO channels (tenant_id, name, channel_type, description, is_read_only, is_archived,
				department_id, project_id, event_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+channelColumns,
			in.TenantID, in.Name, string(in.Type), in.Description, in.IsReadOnly, in.IsArchived,
			in.DepartmentID, in.ProjectID, in.EventID, in.CreatedBy,
		)
		ch, err := scanChannel(row)
		if err != nil {
			return err
		}
		created = ch

		_, err = tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, user_id, role)
			VALUES ($1, $2, $3)`,
			ch.ID, ch.CreatedBy, string(models.RoleOwner),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return created, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1 AND tenant_id = $2`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, channelID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE tenant_id = $1 AND name = $2`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, tenantID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel by name: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) ListVisible(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, f models.ChannelFilter) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels c
		WHERE c.tenant_id = $1
		  AND (c.channel_type = 'public' OR EXISTS (
				SELECT 1 FROM channel_members m
				WHERE m.channel_id = c.id AND m.user_id = $2))
		  AND ($3::text = '' OR c.channel_type = $3::text)
		  AND ($4::uuid IS NULL OR c.department_id = $4::uuid)
		  AND ($5::uuid IS NULL OR c.project_id = $5::uuid)
		  AND ($6::uuid IS NULL OR c.event_id = $6::uuid)
		  AND ($7::boolean IS NULL OR c.is_archived = $7::boolean)
		ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query,
		tenantID, userID, string(f.Type), f.DepartmentID, f.ProjectID, f.EventID, f.Archived)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}

func (s *ChannelStore) Update(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID, patch models.ChannelPatch) (*models.Channel, error) {
	query := `
		UPDATE channels SET
			name         = COALESCE($3, name),
			description  = COALESCE($4, description),
			is_read_only = COALESCE($5, is_read_only),
			is_archived  = COALESCE($6, is_archived),
			updated_at   = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + channelColumns

	ch, err := scanChannel(s.pool.QueryRow(ctx, query,
		channelID, tenantID, patch.Name, patch.Description, patch.IsReadOnly, patch.IsArchived))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrNotFound
		case isUniqueViolation(err):
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("update channel: %w", err)
	}
	return ch, nil
}
