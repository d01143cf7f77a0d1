package models

import "strings"

// ChannelType is fixed when the channel is created.
type ChannelType string

const (
	ChannelPublic     ChannelType = "public"
	ChannelPrivate    ChannelType = "private"
	ChannelDepartment ChannelType = "department"
)

// Valid reports whether t is one of the known channel types.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelPublic, ChannelPrivate, ChannelDepartment:
		return true
	default:
		return false
	}
}

// OpenToTenant reports whether every tenant member may read the channel
// without a membership row.
func (t ChannelType) OpenToTenant() bool {
	switch t {
	case ChannelPublic:
		return true
	case ChannelPrivate, ChannelDepartment:
		return false
	default:
		return false
	}
}

// Role is a member's role inside one conversation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole maps an API value to a Role. Empty means member.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleMember:
		return RoleMember, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleOwner:
		return RoleOwner, true
	default:
		return "", false
	}
}

// Privileged reports whether the role may manage the conversation and
// write to read-only channels.
func (r Role) Privileged() bool {
	switch r {
	case RoleOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

// NormalizeChannelName lowercases the name and joins its words with hyphens:
// "  Team Updates " becomes "team-updates".
func NormalizeChannelName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
