package service

import (
	"context"
	"fmt"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/pagination"
	"github.com/UkralStul/blog-service/internal/storage"
)

// FollowService manages follower -> author edges and the follow timeline.
// Both transitions are idempotent: following twice keeps one edge and
// unfollowing a stranger is a no-op.
type FollowService struct {
	store     storage.Storage
	paginator pagination.Paginator
	publisher events.Publisher
}

func NewFollowService(store storage.Storage, paginator pagination.Paginator, publisher events.Publisher) *FollowService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &FollowService{store: store, paginator: paginator, publisher: publisher}
}

// Follow makes followerID follow the user named username. Following
// yourself is silently ignored.
func (s *FollowService) Follow(ctx context.Context, followerID, username string) error {
	author, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return notFound(err, "user "+username)
	}
	if author.ID == followerID {
		return nil
	}

	created, err := s.store.Follow(ctx, followerID, author.ID)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Error().Err(err).
			Str("follower_id", followerID).
			Str(logging.FieldAuthorID, author.ID).
			Msg("failed to follow user")
		return fmt.Errorf("failed to follow %s: %w", username, err)
	}
	if created {
		publish(ctx, s.publisher, events.TypeFollowCreated, author.ID,
			events.FollowPayload{FollowerID: followerID, AuthorID: author.ID})
	}
	return nil
}

// Unfollow removes the edge if it exists.
func (s *FollowService) Unfollow(ctx context.Context, followerID, username string) error {
	author, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return notFound(err, "user "+username)
	}

	deleted, err := s.store.Unfollow(ctx, followerID, author.ID)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Error().Err(err).
			Str("follower_id", followerID).
			Str(logging.FieldAuthorID, author.ID).
			Msg("failed to unfollow user")
		return fmt.Errorf("failed to unfollow %s: %w", username, err)
	}
	if deleted {
		publish(ctx, s.publisher, events.TypeFollowDeleted, author.ID,
			events.FollowPayload{FollowerID: followerID, AuthorID: author.ID})
	}
	return nil
}

// Timeline returns a page of posts by authors userID follows, newest first.
func (s *FollowService) Timeline(ctx context.Context, userID, page string) (*PostPage, error) {
	filter := storage.PostFilter{FollowerID: userID}
	return pagination.Paginate(ctx, s.paginator, page,
		func(ctx context.Context) (int, error) {
			return s.store.CountPosts(ctx, filter)
		},
		func(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
			return s.store.ListPosts(ctx, filter, limit, offset)
		},
	)
}
