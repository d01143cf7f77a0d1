package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated caller of a request, as supplied by the
// identity provider through the JWT. Every engine operation takes one.
//
// Role is the tenant-wide role. "admin" callers act as moderators: they may
// delete any message in the tenant.
type Identity struct {
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
}

// IsModerator reports whether the caller may moderate content tenant-wide.
func (id Identity) IsModerator() bool {
	return id.Role == "admin" || id.Role == "owner"
}

// User is a person within a tenant. The engine never creates users; it only
// checks that ids handed to it belong to the caller's tenant.
type User struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel is a persistent, typed conversation within a tenant
// (like #general or #incident-123).
//
// Type is fixed at creation. Channels are never hard-deleted; archival is
// the terminal state.
type Channel struct {
	ID           uuid.UUID   `json:"id"`
	TenantID     uuid.UUID   `json:"tenant_id"`
	Name         string      `json:"name"`
	Type         ChannelType `json:"channel_type"`
	Description  string      `json:"description"`
	IsReadOnly   bool        `json:"is_read_only"`
	IsArchived   bool        `json:"is_archived"`
	DepartmentID *uuid.UUID  `json:"department_id,omitempty"`
	ProjectID    *uuid.UUID  `json:"project_id,omitempty"`
	EventID      *uuid.UUID  `json:"event_id,omitempty"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Target returns the message target for this channel.
func (c *Channel) Target() Target {
	return ChannelTarget(c.ID)
}

// ChannelPatch is a partial update of a channel. Nil fields are left alone.
// There is deliberately no Type field.
type ChannelPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsReadOnly  *bool   `json:"is_read_only"`
	IsArchived  *bool   `json:"is_archived"`
}

// Empty reports whether the patch changes nothing.
func (p ChannelPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsReadOnly == nil && p.IsArchived == nil
}

// ChannelFilter narrows a channel listing. Zero values mean "any".
type ChannelFilter struct {
	Type         ChannelType
	DepartmentID *uuid.UUID
	ProjectID    *uuid.UUID
	EventID      *uuid.UUID
	Archived     *bool
}

// Group is an untyped conversation. A DM is a group with IsDM set and
// exactly two members; it has no name.
type Group struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	IsDM      bool      `json:"is_dm"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Target returns the message target for this group.
func (g *Group) Target() Target {
	return GroupTarget(g.ID)
}

// Kind returns the conversation kind used for display purposes.
func (g *Group) Kind() ConversationKind {
	if g.IsDM {
		return KindDM
	}
	return KindGroup
}

// GroupFilter narrows a group listing.
type GroupFilter struct {
	IsDM *bool
}

// Member is one row of channel_members or group_members.
//
// LastReadMessageID is 0 until the member marks something read. It only
// ever moves forward.
type Member struct {
	Conversation      Target     `json:"conversation"`
	UserID            uuid.UUID  `json:"user_id"`
	Role              Role       `json:"role"`
	LastReadMessageID int64      `json:"last_read_message_id"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	IsMuted           bool       `json:"is_muted"`
	JoinedAt          time.Time  `json:"joined_at"`
}

// NewMember is the input for enrolling a user when a conversation is created.
type NewMember struct {
	UserID uuid.UUID
	Role   Role
}

// FileRef points at an attachment held by the blob store. The engine only
// keeps the reference.
type FileRef struct {
	URL  string `json:"url" validate:"required,url"`
	Name string `json:"name" validate:"required,max=255"`
	Size int64  `json:"size" validate:"gte=0"`
}

// Message is a single chat message in a channel or group.
//
// ID comes from a per-tenant sequence: higher id means accepted later.
// It is the only sort key; CreatedAt is informational.
type Message struct {
	ID               int64      `json:"id"`
	TenantID         uuid.UUID  `json:"tenant_id"`
	Target           Target     `json:"target"`
	ParentMessageID  *int64     `json:"parent_message_id,omitempty"`
	SenderID         uuid.UUID  `json:"sender_id"`
	Content          string     `json:"content"`
	File             *FileRef   `json:"file,omitempty"`
	ThreadReplyCount int        `json:"thread_reply_count"`
	IsEdited         bool       `json:"is_edited"`
	EditedAt         *time.Time `json:"edited_at,omitempty"`
	IsDeleted        bool       `json:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Redacted returns the message as readers see it: a deleted message keeps
// its row, thread linkage and counters but loses its content and file.
func (m Message) Redacted() Message {
	if !m.IsDeleted {
		return m
	}
	m.Content = ""
	m.File = nil
	return m
}

// NewMessage is the input for persisting a message.
type NewMessage struct {
	TenantID        uuid.UUID
	Target          Target
	ParentMessageID *int64
	SenderID        uuid.UUID
	Content         string
	File            *FileRef
	Mentions        []uuid.UUID
}

// MessageFilter selects messages for a page.
//
// With ParentID set the page holds the replies of that thread, otherwise the
// top-level messages of Target. Before is an exclusive id cursor, 0 meaning
// "from the newest".
type MessageFilter struct {
	Target   Target
	ParentID *int64
	SenderID *uuid.UUID
	Query    string
	Before   int64
	Limit    int
	Offset   int
	LiveOnly bool
}

// MessageView is a message as returned by queries, with its reaction groups.
type MessageView struct {
	Message
	Reactions []ReactionGroup `json:"reactions"`
}

// MessagePage is one page of messages in ascending id order.
//
// HasMore is true when the page came back full. A short page proves the
// start of history was reached.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"has_more"`
	OldestID int64         `json:"oldest_id,omitempty"`
}

// Reaction is one emoji from one user on one message.
type Reaction struct {
	ID        int64     `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	MessageID int64     `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup aggregates the reactions of one emoji on a message.
type ReactionGroup struct {
	Emoji   string      `json:"emoji"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// Mention links a message to a user named in it.
type Mention struct {
	TenantID        uuid.UUID  `json:"tenant_id"`
	MessageID       int64      `json:"message_id"`
	MentionedUserID uuid.UUID  `json:"mentioned_user_id"`
	IsRead          bool       `json:"is_read"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MentionEvent is handed to the mention dispatcher once the message is stored.
type MentionEvent struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	MessageID       int64     `json:"message_id"`
	Conversation    Target    `json:"conversation"`
	SenderID        uuid.UUID `json:"sender_id"`
	MentionedUserID uuid.UUID `json:"mentioned_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// UnreadCount is one entry of the unread totals.
type UnreadCount struct {
	Conversation Target `json:"conversation"`
	Count        int    `json:"count"`
}

// MessageWindow is the newest page of a conversation as held by the cache:
// top-level messages in ascending id order, unredacted.
type MessageWindow struct {
	Messages []Message `json:"messages"`
}
