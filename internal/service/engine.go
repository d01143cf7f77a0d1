package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 50
	DefaultMaxPageSize = 100
)

// MessageCache holds the newest top-level page of each conversation.
// Get returns a nil window on a miss; the version it returns goes back into
// Fill so a stale load never overwrites a newer append.
type MessageCache interface {
	Size() int
	Get(ctx context.Context, tenantID uuid.UUID, target models.Target) (*models.MessageWindow, int64, error)
	Fill(ctx context.Context, tenantID uuid.UUID, target models.Target, version int64, w models.MessageWindow) error
	Append(ctx context.Context, tenantID uuid.UUID, target models.Target, msg models.Message) error
	Invalidate(ctx context.Context, tenantID uuid.UUID, target models.Target) error
}

// MentionDispatcher delivers mention events once the message is stored.
type MentionDispatcher interface {
	Dispatch(ctx context.Context, event models.MentionEvent) error
}

// Searcher answers free-text queries over the conversations userID can
// read. Ranking is the searcher's business.
type Searcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID, query string, limit int) ([]models.Message, error)
}

// Stores groups the repositories the engine runs on.
type Stores struct {
	Channels  repository.ChannelRepository
	Groups    repository.GroupRepository
	Members   repository.MembershipRepository
	Messages  repository.MessageRepository
	Reactions repository.ReactionRepository
	Mentions  repository.MentionRepository
	Users     repository.UserRepository
}

// Options tunes the engine. Zero values pick the defaults; a nil Cache or
// Dispatcher switches that feature off and a nil Searcher falls back to the
// message store's substring search.
type Options struct {
	PageSize    int
	MaxPageSize int
	DedupeDMs   bool
	Cache       MessageCache
	Dispatcher  MentionDispatcher
	Searcher    Searcher
}

// Engine is the conversation engine, one component per concern.
type Engine struct {
	Access        *Access
	Conversations *Conversations
	Messages      *Messages
	Reactions     *Reactions
	ReadState     *ReadState
	Query         *Query
	Mentions      *Mentions
}

func New(stores Stores, opts Options, logger *zap.Logger) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = max(DefaultMaxPageSize, opts.PageSize)
	}
	if opts.Searcher == nil {
		opts.Searcher = stores.Messages
	}

	access := NewAccess(stores.Channels, stores.Groups, stores.Members, stores.Users, logger)

	return &Engine{
		Access: access,
		Conversations: &Conversations{
			access:    access,
			channels:  stores.Channels,
			groups:    stores.Groups,
			members:   stores.Members,
			messages:  stores.Messages,
			logger:    logger,
			dedupeDMs: opts.DedupeDMs,
		},
		Messages: &Messages{
			access:     access,
			messages:   stores.Messages,
			cache:      opts.Cache,
			dispatcher: opts.Dispatcher,
			validate:   validator.New(),
			logger:     logger,
		},
		Reactions: &Reactions{
			access:    access,
			messages:  stores.Messages,
			reactions: stores.Reactions,
			logger:    logger,
		},
		ReadState: &ReadState{
			access:   access,
			members:  stores.Members,
			messages: stores.Messages,
		},
		Query: &Query{
			access:      access,
			messages:    stores.Messages,
			reactions:   stores.Reactions,
			cache:       opts.Cache,
			searcher:    opts.Searcher,
			pageSize:    opts.PageSize,
			maxPageSize: opts.MaxPageSize,
			logger:      logger,
		},
		Mentions: &Mentions{
			mentions: stores.Mentions,
		},
	}
}
