package postgres

import "github.com/lalith-99/echothread/internal/repository"

var (
	_ repository.ChannelRepository    = (*ChannelStore)(nil)
	_ repository.GroupRepository      = (*GroupStore)(nil)
	_ repository.MembershipRepository = (*MembershipStore)(nil)
	_ repository.MessageRepository    = (*MessageStore)(nil)
	_ repository.ReactionRepository   = (*ReactionStore)(nil)
	_ repository.MentionRepository    = (*MentionStore)(nil)
	_ repository.UserRepository       = (*UserStore)(nil)
)
