package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(Config{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return New(db)
}

func seedUser(t *testing.T, s *Store, username string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &domain.User{Username: username})
	require.NoError(t, err)
	return u
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestStore_UsersAndGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "TestName")
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByUsername(ctx, "TestName")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.CreateUser(ctx, &domain.User{Username: "TestName"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	g, err := s.CreateGroup(ctx, &domain.Group{Title: "Test title", Slug: "test_slug", Description: "Test descrip"})
	require.NoError(t, err)
	bySlug, err := s.GetGroupBySlug(ctx, "test_slug")
	require.NoError(t, err)
	assert.Equal(t, g.ID, bySlug.ID)

	_, err = s.CreateGroup(ctx, &domain.Group{Title: "Other", Slug: "test_slug"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestStore_PostLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	author := seedUser(t, s, "auth")
	group, err := s.CreateGroup(ctx, &domain.Group{Title: "Test title", Slug: "test_slug"})
	require.NoError(t, err)

	post, err := s.CreatePost(ctx, &domain.Post{Text: "Test text", AuthorID: author.ID, GroupID: &group.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())

	got, err := s.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test text", got.Text)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, group.ID, *got.GroupID)

	got.Text = "Another test text"
	got.GroupID = nil
	updated, err := s.UpdatePost(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Another test text", updated.Text)
	assert.Nil(t, updated.GroupID)
	assert.Equal(t, author.ID, updated.AuthorID)

	_, err = s.UpdatePost(ctx, &domain.Post{ID: "missing", Text: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	missing := "missing-group"
	_, err = s.CreatePost(ctx, &domain.Post{Text: "x", AuthorID: author.ID, GroupID: &missing})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedUser(t, s, "a")
	b := seedUser(t, s, "b")

	base := time.Date(1998, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		author := a
		if i%2 == 1 {
			author = b
		}
		_, err := s.CreatePost(ctx, &domain.Post{
			Text:      "Test text",
			AuthorID:  author.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	total, err := s.CountPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, 13, total)

	first, err := s.ListPosts(ctx, storage.PostFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, first, 10)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].CreatedAt.After(first[i].CreatedAt), "newest first")
	}

	second, err := s.ListPosts(ctx, storage.PostFilter{}, 10, 10)
	require.NoError(t, err)
	assert.Len(t, second, 3)

	byA, err := s.CountPosts(ctx, storage.PostFilter{AuthorID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 7, byA)

	_, err = s.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	feed, err := s.ListPosts(ctx, storage.PostFilter{FollowerID: a.ID}, 100, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 6)
	for _, p := range feed {
		assert.Equal(t, b.ID, p.AuthorID)
	}
}

func TestStore_Comments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	author := seedUser(t, s, "auth")
	post, err := s.CreatePost(ctx, &domain.Post{Text: "Test text", AuthorID: author.ID})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: author.ID, Text: "Test comment"})
	require.NoError(t, err)

	comments, err := s.GetCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Test comment", comments[0].Text)

	_, err = s.CreateComment(ctx, &domain.Comment{PostID: "missing", AuthorID: author.ID, Text: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_FollowUniquePair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	follower := seedUser(t, s, "follower")
	author := seedUser(t, s, "unfollower")

	created, err := s.Follow(ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Follow(ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.CountFollowers(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.IsFollowing(ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := s.Unfollow(ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Unfollow(ctx, follower.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err = s.CountFollowers(ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_BatchLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedUser(t, s, "a")
	b := seedUser(t, s, "b")

	users, err := s.GetUsersByIDs(ctx, []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "b", users[b.ID].Username)

	g, err := s.CreateGroup(ctx, &domain.Group{Title: "T", Slug: "t"})
	require.NoError(t, err)
	groups, err := s.GetGroupsByIDs(ctx, []string{g.ID})
	require.NoError(t, err)
	assert.Equal(t, "T", groups[g.ID].Title)
}
