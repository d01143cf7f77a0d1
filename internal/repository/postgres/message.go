package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

const messageColumns = `tenant_id, id, channel_id, group_id, parent_message_id, sender_id, content,
	file_url, file_name, file_size, thread_reply_count, is_edited, edited_at, is_deleted, deleted_at,
	created_at, updated_at`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row scanner) (*models.Message, error) {
	var (
		msg                models.Message
		channelID, groupID *uuid.UUID
		fileURL, fileName  *string
		fileSize           *int64
	)
	err := row.Scan(
		&msg.TenantID,
		&msg.ID,
		&channelID,
		&groupID,
		&msg.ParentMessageID,
		&msg.SenderID,
		&msg.Content,
		&fileURL,
		&fileName,
		&fileSize,
		&msg.ThreadReplyCount,
		&msg.IsEdited,
		&msg.EditedAt,
		&msg.IsDeleted,
		&msg.DeletedAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	target, err := models.TargetFromIDs(channelID, groupID)
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", msg.ID, err)
	}
	msg.Target = target
	if fileURL != nil {
		msg.File = &models.FileRef{URL: *fileURL}
		if fileName != nil {
			msg.File.Name = *fileName
		}
		if fileSize != nil {
			msg.File.Size = *fileSize
		}
	}
	return &msg, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()
	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// Create runs the whole send in one transaction:
//
//  1. bump the tenant sequence; the row lock it takes is held until commit,
//     so concurrent senders in the same tenant get ids in commit order.
//  2. bump the parent's reply counter in SQL (never read-modify-write), and
//     only if the parent is still live and in the same conversation.
//  3. insert the message and its mention rows.
func (s *MessageStore) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	channelID, groupID := in.Target.Columns()
	var fileURL, fileName *string
	var fileSize *int64
	if in.File != nil {
		fileURL, fileName, fileSize = &in.File.URL, &in.File.Name, &in.File.Size
	}

	var created *models.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO tenant_message_seq (tenant_id, last_id)
			VALUES ($1, 1)
			ON CONFLICT (tenant_id) DO UPDATE SET last_id = tenant_message_seq.last_id + 1
			RETURNING last_id`, in.TenantID).Scan(&id)
		if err != nil {
			return fmt.Errorf("next message id: %w", err)
		}

		if in.ParentMessageID != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE messages
				SET thread_reply_count = thread_reply_count + 1, updated_at = now()
				WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted
				  AND channel_id IS NOT DISTINCT FROM $3
				  AND group_id IS NOT DISTINCT FROM $4`,
				in.TenantID, *in.ParentMessageID, channelID, groupID)
			if err != nil {
				return fmt.Errorf("bump reply count: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrInvalidParent
			}
		}

		msg, err := scanMessage(tx.QueryRow(ctx, `
			INSERT INTO messages (tenant_id, id, channel_id, group_id, parent_message_id, sender_id,
				content, file_url, file_name, file_size)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+messageColumns,
			in.TenantID, id, channelID, groupID, in.ParentMessageID, in.SenderID,
			in.Content, fileURL, fileName, fileSize,
		))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		created = msg

		if len(in.Mentions) > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO message_mentions (tenant_id, message_id, mentioned_user_id)
				SELECT $1, $2, u FROM unnest($3::uuid[]) AS u
				ON CONFLICT DO NOTHING`,
				in.TenantID, id, in.Mentions)
			if err != nil {
				return fmt.Errorf("insert mentions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidParent) {
			return nil, err
		}
		return nil, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

func (s *MessageStore) GetByID(ctx context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE tenant_id = $1 AND id = $2`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, tenantID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// List pages with an id cursor: before=0 is the newest page, before=42
// means "older than 42". Rows come out of Postgres newest first (so LIMIT
// cuts the right end) and are flipped to ascending before returning.
func (s *MessageStore) List(ctx context.Context, tenantID uuid.UUID, f models.MessageFilter) ([]models.Message, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ParentID != nil {
		add("parent_message_id = $%d", *f.ParentID)
	} else {
		channelID, groupID := f.Target.Columns()
		switch {
		case channelID != nil:
			add("channel_id = $%d", *channelID)
		case groupID != nil:
			add("group_id = $%d", *groupID)
		default:
			return nil, fmt.Errorf("list messages: no conversation")
		}
		where = append(where, "parent_message_id IS NULL")
	}
	if f.Before > 0 {
		add("id < $%d", f.Before)
	}
	if f.SenderID != nil {
		add("sender_id = $%d", *f.SenderID)
	}
	q := strings.TrimSpace(f.Query)
	if f.LiveOnly || q != "" {
		where = append(where, "NOT is_deleted")
	}
	if q != "" {
		add("content ILIKE $%d", likePattern(q))
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`,
		messageColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, tenantID uuid.UUID, messageID int64, content string) (*models.Message, error) {
	query := `
		UPDATE messages
		SET content = $3, is_edited = true, edited_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, tenantID, messageID, content))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return msg, nil
}

// SoftDelete keeps the row, reactions and reply counter intact.
func (s *MessageStore) SoftDelete(ctx context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error) {
	query := `
		UPDATE messages
		SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, tenantID, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) CountUnread(ctx context.Context, tenantID uuid.UUID, conv models.Target, userID uuid.UUID, afterID int64) (int, error) {
	channelID, groupID := conv.Columns()
	query := `
		SELECT count(*) FROM messages
		WHERE tenant_id = $1
		  AND channel_id IS NOT DISTINCT FROM $2
		  AND group_id IS NOT DISTINCT FROM $3
		  AND id > $4 AND NOT is_deleted AND sender_id <> $5`

	var n int
	if err := s.pool.QueryRow(ctx, query, tenantID, channelID, groupID, afterID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *MessageStore) UnreadSummary(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) ([]models.UnreadCount, error) {
	query := `
		SELECT 'channel', m.channel_id, m.joined_at, (
			SELECT count(*) FROM messages x
			WHERE x.tenant_id = $1 AND x.channel_id = m.channel_id
			  AND x.id > m.last_read_message_id AND NOT x.is_deleted AND x.sender_id <> $2)
		FROM channel_members m
		JOIN channels c ON c.id = m.channel_id AND c.tenant_id = $1
		WHERE m.user_id = $2
		UNION ALL
		SELECT 'group', m.group_id, m.joined_at, (
			SELECT count(*) FROM messages x
			WHERE x.tenant_id = $1 AND x.group_id = m.group_id
			  AND x.id > m.last_read_message_id AND NOT x.is_deleted AND x.sender_id <> $2)
		FROM group_members m
		JOIN chat_groups g ON g.id = m.group_id AND g.tenant_id = $1
		WHERE m.user_id = $2
		ORDER BY 3`

	rows, err := s.pool.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("unread summary: %w", err)
	}
	defer rows.Close()

	out := make([]models.UnreadCount, 0)
	for rows.Next() {
		var (
			kind   string
			id     uuid.UUID
			joined time.Time
			count  int
		)
		if err := rows.Scan(&kind, &id, &joined, &count); err != nil {
			return nil, fmt.Errorf("scan unread: %w", err)
		}
		conv := models.GroupTarget(id)
		if kind == string(models.KindChannel) {
			conv = models.ChannelTarget(id)
		}
		out = append(out, models.UnreadCount{Conversation: conv, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread: %w", err)
	}
	return out, nil
}

// Search is the built-in pass-through search: a substring match limited to
// what the caller can read. Ranking is left to a real search backend.
func (s *MessageStore) Search(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	sql := `
		SELECT ` + messageColumns + `
		FROM messages x
		WHERE x.tenant_id = $1 AND NOT x.is_deleted AND x.content ILIKE $3
		  AND (
			(x.channel_id IS NOT NULL AND (
				EXISTS (SELECT 1 FROM channel_members m WHERE m.channel_id = x.channel_id AND m.user_id = $2)
				OR EXISTS (SELECT 1 FROM channels c WHERE c.id = x.channel_id AND c.channel_type = 'public')))
			OR (x.group_id IS NOT NULL AND
				EXISTS (SELECT 1 FROM group_members m WHERE m.group_id = x.group_id AND m.user_id = $2))
		  )
		ORDER BY x.id DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, sql, tenantID, userID, likePattern(strings.TrimSpace(query)), limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return collectMessages(rows)
}
