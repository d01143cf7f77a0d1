package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
)

// Every method takes ctx first and, wherever rows are tenant-owned, the
// tenant id: the handler takes it from the JWT and the store always filters
// on it, so a guessed id from another tenant matches nothing.
//
// Lookups by id return nil, nil when the row does not exist. Mutations that
// need a row report its absence with ErrNotFound.

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")

	// ErrInvalidParent is returned by MessageRepository.Create when the
	// parent disappeared or was deleted before the reply committed.
	ErrInvalidParent = errors.New("invalid parent message")
)

// ChannelRepository defines the contract for channel data operations.
type ChannelRepository interface {
	// Create inserts the channel and enrolls its creator as owner in one
	// transaction. A duplicate (tenant, name) returns ErrConflict.
	Create(ctx context.Context, ch *models.Channel) (*models.Channel, error)

	// GetByID returns a single channel. Returns nil, nil if not found.
	GetByID(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID) (*models.Channel, error)

	// GetByName looks up a channel by its normalized name.
	GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Channel, error)

	// ListVisible returns the channels userID may see: every public channel
	// plus those the user is a member of. Returns empty slice (not nil).
	ListVisible(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, filter models.ChannelFilter) ([]models.Channel, error)

	// Update applies the patch. Returns ErrConflict on a name clash and
	// ErrNotFound if the channel is gone.
	Update(ctx context.Context, tenantID uuid.UUID, channelID uuid.UUID, patch models.ChannelPatch) (*models.Channel, error)
}

// GroupRepository handles groups and DMs.
type GroupRepository interface {
	// Create inserts the group and its members in one transaction.
	Create(ctx context.Context, g *models.Group, members []models.NewMember) (*models.Group, error)

	// GetByID returns a single group. Returns nil, nil if not found.
	GetByID(ctx context.Context, tenantID uuid.UUID, groupID uuid.UUID) (*models.Group, error)

	// ListForUser returns the groups userID belongs to, newest first.
	ListForUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, filter models.GroupFilter) ([]models.Group, error)

	// FindDM returns the oldest DM between a and b, or nil, nil.
	FindDM(ctx context.Context, tenantID uuid.UUID, a, b uuid.UUID) (*models.Group, error)
}

// MembershipRepository handles who belongs to which conversation. The
// target picks the channel_members or group_members table.
type MembershipRepository interface {
	// Add enrolls a user. Returns ErrConflict if the pair exists.
	Add(ctx context.Context, conv models.Target, userID uuid.UUID, role models.Role) (*models.Member, error)

	// Remove deletes the membership row. Returns ErrNotFound if absent.
	Remove(ctx context.Context, conv models.Target, userID uuid.UUID) error

	// Get returns the membership row, or nil, nil.
	Get(ctx context.Context, conv models.Target, userID uuid.UUID) (*models.Member, error)

	// List returns all members, in join order.
	List(ctx context.Context, conv models.Target) ([]models.Member, error)

	// AdvanceReadPointer sets last_read_message_id to the max of its
	// current value and messageID. Returns ErrNotFound if not a member.
	AdvanceReadPointer(ctx context.Context, conv models.Target, userID uuid.UUID, messageID int64) (*models.Member, error)

	// SetMuted flips the member's mute flag. Returns ErrNotFound if not a member.
	SetMuted(ctx context.Context, conv models.Target, userID uuid.UUID, muted bool) (*models.Member, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create assigns the next tenant id, stores the message and its
	// mentions, and bumps the parent's reply counter, all atomically.
	Create(ctx context.Context, in models.NewMessage) (*models.Message, error)

	// GetByID returns a message, deleted or not. Returns nil, nil if not found.
	GetByID(ctx context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error)

	// List returns one page in ascending id order.
	List(ctx context.Context, tenantID uuid.UUID, filter models.MessageFilter) ([]models.Message, error)

	// UpdateContent edits a live message. Returns ErrNotFound if it is
	// missing or deleted.
	UpdateContent(ctx context.Context, tenantID uuid.UUID, messageID int64, content string) (*models.Message, error)

	// SoftDelete marks a live message deleted. Returns ErrNotFound if it is
	// missing or already deleted.
	SoftDelete(ctx context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error)

	// CountUnread counts live messages in conv with id > afterID not sent by userID.
	CountUnread(ctx context.Context, tenantID uuid.UUID, conv models.Target, userID uuid.UUID, afterID int64) (int, error)

	// UnreadSummary returns the unread count for every conversation userID
	// is a member of, in one round trip.
	UnreadSummary(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) ([]models.UnreadCount, error)

	// Search does a plain substring match over live messages in the
	// conversations userID can read, newest first.
	Search(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, query string, limit int) ([]models.Message, error)
}

// ReactionRepository stores emoji reactions.
type ReactionRepository interface {
	// Add inserts the reaction, or returns the existing row for the same
	// (message, user, emoji). created is false in the latter case.
	Add(ctx context.Context, r *models.Reaction) (stored *models.Reaction, created bool, err error)

	// GetByID returns a reaction. Returns nil, nil if not found.
	GetByID(ctx context.Context, tenantID uuid.UUID, reactionID int64) (*models.Reaction, error)

	// Delete removes a reaction by id. Deleting a missing row is not an error.
	Delete(ctx context.Context, tenantID uuid.UUID, reactionID int64) (bool, error)

	// DeleteByKey removes the (message, user, emoji) reaction if present.
	DeleteByKey(ctx context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID, emoji string) (bool, error)

	// ListByMessages returns the live reactions of the given messages,
	// ordered by id.
	ListByMessages(ctx context.Context, tenantID uuid.UUID, messageIDs []int64) ([]models.Reaction, error)
}

// MentionRepository reads and acknowledges mentions. Mentions are written
// by MessageRepository.Create.
type MentionRepository interface {
	ListForUser(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Mention, error)

	// MarkRead acknowledges one mention. Returns ErrNotFound if absent.
	MarkRead(ctx context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID) (*models.Mention, error)
}

// UserRepository reads users owned by the identity service.
type UserRepository interface {
	// GetByID returns a user by their ID, scoped to the tenant.
	GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error)

	// MissingFromTenant returns the ids in userIDs that are not users of the
	// tenant, in input order. An empty result means all of them are.
	MissingFromTenant(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error)
}
