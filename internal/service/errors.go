package service

import "errors"

// Kind classifies a rejected command. Each kind maps to one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a rejected command. Code names the exact reason so callers can
// tell "channel read-only" from "message not found"; errors.Is matches on
// Code, so a copy carrying Existing still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// Existing is the entity a Conflict collided with, when there is one.
	Existing any
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// withExisting returns a copy of a conflict sentinel pointing at the entity.
func withExisting(e *Error, existing any) *Error {
	c := *e
	c.Existing = existing
	return &c
}

// KindOf returns the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrEmptyMessage       = newError(KindValidation, "empty_message", "message needs content or a file")
	ErrInvalidTarget      = newError(KindValidation, "invalid_target", "exactly one of channel_id or group_id is required")
	ErrInvalidParent      = newError(KindValidation, "invalid_parent", "parent message is missing, deleted or in another conversation")
	ErrInvalidFile        = newError(KindValidation, "invalid_file", "file reference needs a url, a name and a non-negative size")
	ErrInvalidChannelType = newError(KindValidation, "invalid_channel_type", "channel type must be public, private or department")
	ErrInvalidName        = newError(KindValidation, "invalid_name", "name is required")
	ErrInvalidRole        = newError(KindValidation, "invalid_role", "role must be owner, admin or member")
	ErrInvalidMembers     = newError(KindValidation, "invalid_members", "a dm needs exactly one other member")
	ErrInvalidEmoji       = newError(KindValidation, "invalid_emoji", "emoji is required")
	ErrNotInConversation  = newError(KindValidation, "message_not_in_conversation", "message does not belong to this conversation")
	ErrEmptyPatch         = newError(KindValidation, "empty_patch", "nothing to update")
	ErrEmptyQuery         = newError(KindValidation, "empty_query", "search query is required")

	ErrForbidden          = newError(KindForbidden, "forbidden", "not allowed")
	ErrMembershipRequired = newError(KindForbidden, "membership_required", "you are not a member of this conversation")
	ErrNotSender          = newError(KindForbidden, "not_sender", "only the sender can do that")
	ErrReadOnly           = newError(KindForbidden, "channel_read_only", "channel is read-only")
	ErrArchived           = newError(KindForbidden, "channel_archived", "channel is archived")
	ErrDMMembership       = newError(KindForbidden, "dm_membership_fixed", "dm membership cannot change")
	ErrNotReactor         = newError(KindForbidden, "not_reactor", "only the user who reacted can remove it")
	ErrOwnerRequired      = newError(KindForbidden, "owner_required", "only an owner can grant the owner role")

	ErrChannelNotFound  = newError(KindNotFound, "channel_not_found", "channel not found")
	ErrGroupNotFound    = newError(KindNotFound, "group_not_found", "group not found")
	ErrMessageNotFound  = newError(KindNotFound, "message_not_found", "message not found")
	ErrReactionNotFound = newError(KindNotFound, "reaction_not_found", "reaction not found")
	ErrMentionNotFound  = newError(KindNotFound, "mention_not_found", "mention not found")
	ErrUserNotFound     = newError(KindNotFound, "user_not_found", "user not found in this tenant")
	ErrNotMember        = newError(KindNotFound, "not_member", "user is not a member")

	ErrAlreadyMember    = newError(KindConflict, "already_member", "user is already a member")
	ErrChannelNameTaken = newError(KindConflict, "channel_name_taken", "a channel with that name already exists")
	ErrDMExists         = newError(KindConflict, "dm_exists", "a dm between these users already exists")
)
