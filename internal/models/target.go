package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ConversationKind is the closed set of conversation kinds.
type ConversationKind string

const (
	KindChannel ConversationKind = "channel"
	KindGroup   ConversationKind = "group"
	KindDM      ConversationKind = "dm"
)

// Target identifies the conversation a message lives in: exactly one of a
// channel or a group. The zero Target is invalid; build one with
// ChannelTarget or GroupTarget.
type Target struct {
	kind ConversationKind
	id   uuid.UUID
}

// ChannelTarget targets a channel.
func ChannelTarget(id uuid.UUID) Target {
	return Target{kind: KindChannel, id: id}
}

// GroupTarget targets a group (DMs included).
func GroupTarget(id uuid.UUID) Target {
	return Target{kind: KindGroup, id: id}
}

// Kind is KindChannel or KindGroup for a valid target.
func (t Target) Kind() ConversationKind { return t.kind }

// ID is the channel or group id.
func (t Target) ID() uuid.UUID { return t.id }

// IsZero reports whether the target was never set.
func (t Target) IsZero() bool {
	return t.kind == "" || t.id == uuid.Nil
}

// ChannelID returns the channel id if this targets a channel.
func (t Target) ChannelID() (uuid.UUID, bool) {
	if t.kind != KindChannel {
		return uuid.Nil, false
	}
	return t.id, true
}

// GroupID returns the group id if this targets a group.
func (t Target) GroupID() (uuid.UUID, bool) {
	if t.kind != KindGroup {
		return uuid.Nil, false
	}
	return t.id, true
}

func (t Target) String() string {
	if t.IsZero() {
		return "none"
	}
	return string(t.kind) + ":" + t.id.String()
}

// TargetFromIDs builds a target from the nullable column pair used on the
// wire and in storage. Exactly one id must be set.
func TargetFromIDs(channelID, groupID *uuid.UUID) (Target, error) {
	switch {
	case channelID != nil && groupID != nil:
		return Target{}, fmt.Errorf("both channel_id and group_id set")
	case channelID != nil && *channelID != uuid.Nil:
		return ChannelTarget(*channelID), nil
	case groupID != nil && *groupID != uuid.Nil:
		return GroupTarget(*groupID), nil
	default:
		return Target{}, fmt.Errorf("one of channel_id or group_id is required")
	}
}

// Columns splits the target back into the nullable column pair.
func (t Target) Columns() (channelID, groupID *uuid.UUID) {
	id := t.id
	switch t.kind {
	case KindChannel:
		return &id, nil
	case KindGroup:
		return nil, &id
	default:
		return nil, nil
	}
}

type targetJSON struct {
	Kind ConversationKind `json:"kind"`
	ID   uuid.UUID        `json:"id"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(targetJSON{Kind: t.kind, ID: t.id})
}

func (t *Target) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Target{}
		return nil
	}
	var raw targetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case KindChannel:
		*t = ChannelTarget(raw.ID)
	case KindGroup:
		*t = GroupTarget(raw.ID)
	default:
		return fmt.Errorf("unknown conversation kind %q", raw.Kind)
	}
	return nil
}
