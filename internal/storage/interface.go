package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/blog-service/internal/domain"
)

var (
	// ErrNotFound возвращается, когда запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (username, slug) is taken.
	ErrDuplicate = errors.New("record already exists")
)

// PostFilter narrows post listings. Empty fields are ignored; the zero
// value selects every post.
type PostFilter struct {
	AuthorID string
	GroupID  string
	// FollowerID selects posts written by authors FollowerID follows.
	FollowerID string
}

// Storage определяет контракт для хранилищ.
// Post listings are always ordered newest first, comments oldest first.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error)
	GetGroupByID(ctx context.Context, id string) (*domain.Group, error)
	ListGroups(ctx context.Context) ([]*domain.Group, error)

	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)

	// Методы для пагинации
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]*domain.Post, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error)

	// Follow creates the (follower, author) edge unless it already exists and
	// reports whether a new edge was written.
	Follow(ctx context.Context, followerID, authorID string) (bool, error)
	// Unfollow removes the edge and reports whether one existed.
	Unfollow(ctx context.Context, followerID, authorID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, authorID string) (bool, error)
	CountFollowers(ctx context.Context, authorID string) (int64, error)

	// Методы для Dataloader'ов
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error)
}
