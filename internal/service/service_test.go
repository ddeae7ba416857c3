package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/media"
	"github.com/UkralStul/blog-service/internal/pagination"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"
)

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store    *inmemory.Store
	files    *media.LocalStorage
	observer *events.CommentObserver
	pub      *recordingPublisher
	content  *ContentService
	follows  *FollowService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := media.NewLocalStorage(media.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	f := &fixture{
		store:    inmemory.New(),
		files:    files,
		observer: events.NewCommentObserver(),
		pub:      &recordingPublisher{},
	}
	p := pagination.New(10)
	f.content = NewContentService(f.store, f.files, p, f.observer, f.pub)
	f.follows = NewFollowService(f.store, p, f.pub)
	f.users = NewUserService(f.store)
	return f
}

func (f *fixture) user(t *testing.T, username string) *domain.User {
	t.Helper()
	u, err := f.users.EnsureUser(context.Background(), username, "")
	require.NoError(t, err)
	return u
}

func (f *fixture) group(t *testing.T, slug string) *domain.Group {
	t.Helper()
	g, err := f.store.CreateGroup(context.Background(), &domain.Group{Title: "Группа " + slug, Slug: slug})
	require.NoError(t, err)
	return g
}

func (f *fixture) post(t *testing.T, author *domain.User, text string) *domain.Post {
	t.Helper()
	p, err := f.content.CreatePost(context.Background(), author.ID, PostInput{Text: text})
	require.NoError(t, err)
	return p
}

func TestEnsureUser_GetOrCreate(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "leo")
	b := f.user(t, "leo")
	assert.Equal(t, a.ID, b.ID)
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")
	group := f.group(t, "test-slug")

	post, err := f.content.CreatePost(ctx, author.ID, PostInput{
		Text:    "  Test text  ",
		GroupID: group.ID,
		Image:   &media.Upload{Filename: "small.gif", Content: bytes.NewReader(smallGIF)},
	})
	require.NoError(t, err)

	assert.Equal(t, "Test text", post.Text)
	assert.Equal(t, author.ID, post.AuthorID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, group.ID, *post.GroupID)
	assert.True(t, strings.HasPrefix(post.Image, "posts/"), post.Image)

	ok, err := f.files.Exists(ctx, post.Image)
	require.NoError(t, err)
	assert.True(t, ok)

	profile, err := f.content.Profile(ctx, "auth", "", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.PostCount)
	assert.Equal(t, []string{events.TypePostCreated}, f.pub.types())
}

func TestCreatePost_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")

	_, err := f.content.CreatePost(ctx, author.ID, PostInput{
		Text:    "   ",
		GroupID: "no-such-group",
		Image:   &media.Upload{Content: strings.NewReader("plain text, not an image")},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "text")
	assert.Contains(t, ve.Fields, "group")
	assert.Contains(t, ve.Fields, "image")

	count, err := f.store.CountPosts(ctx, storageAll)
	require.NoError(t, err)
	assert.Zero(t, count, "invalid form must not create a post")
	assert.Empty(t, f.pub.types())
}

func TestEditPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")
	stranger := f.user(t, "stranger")
	group := f.group(t, "g")
	post := f.post(t, author, "Test text")

	t.Run("non-author is forbidden and nothing changes", func(t *testing.T) {
		_, err := f.content.EditPost(ctx, post.ID, stranger.ID, PostInput{Text: "hijacked"})
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := f.content.Post(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "Test text", got.Text)
	})

	t.Run("author edits text and group", func(t *testing.T) {
		updated, err := f.content.EditPost(ctx, post.ID, author.ID, PostInput{Text: "Edited", GroupID: group.ID})
		require.NoError(t, err)
		assert.Equal(t, "Edited", updated.Text)
		require.NotNil(t, updated.GroupID)
		assert.Equal(t, group.ID, *updated.GroupID)
		assert.Equal(t, author.ID, updated.AuthorID)
		assert.Equal(t, post.CreatedAt, updated.CreatedAt)
	})

	t.Run("blank text is a validation error", func(t *testing.T) {
		_, err := f.content.EditPost(ctx, post.ID, author.ID, PostInput{Text: ""})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := f.content.EditPost(ctx, "missing", author.ID, PostInput{Text: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEditPost_KeepsImageWhenNoneUploaded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")

	post, err := f.content.CreatePost(ctx, author.ID, PostInput{
		Text:  "with image",
		Image: &media.Upload{Content: bytes.NewReader(smallGIF)},
	})
	require.NoError(t, err)

	updated, err := f.content.EditPost(ctx, post.ID, author.ID, PostInput{Text: "still with image"})
	require.NoError(t, err)
	assert.Equal(t, post.Image, updated.Image)
}

func TestCreateComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")
	post := f.post(t, author, "Test text")

	_, stream := f.observer.Subscribe(post.ID)

	c, err := f.content.CreateComment(ctx, post.ID, author.ID, CommentInput{Text: "first"})
	require.NoError(t, err)

	select {
	case got := <-stream:
		assert.Equal(t, c.ID, got.ID)
	default:
		t.Fatal("comment was not pushed to subscribers")
	}

	_, err = f.content.CreateComment(ctx, post.ID, author.ID, CommentInput{Text: " "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "text")

	_, err = f.content.CreateComment(ctx, "missing", author.ID, CommentInput{Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	detail, err := f.content.PostDetail(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "first", detail.Comments[0].Text)
}

func TestIndex_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")
	for i := 0; i < 13; i++ {
		f.post(t, author, fmt.Sprintf("post %d", i))
	}

	first, err := f.content.Index(ctx, "")
	require.NoError(t, err)
	assert.Len(t, first.Items, 10)
	assert.Equal(t, "post 12", first.Items[0].Text)

	second, err := f.content.Index(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, second.Items, 3)

	last, err := f.content.Index(ctx, "99")
	require.NoError(t, err)
	assert.Equal(t, 2, last.Number)
}

func TestGroupPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "auth")
	group := f.group(t, "test-slug")
	f.group(t, "other")

	_, err := f.content.CreatePost(ctx, author.ID, PostInput{Text: "in group", GroupID: group.ID})
	require.NoError(t, err)
	f.post(t, author, "no group")

	gp, err := f.content.GroupPosts(ctx, "test-slug", "1")
	require.NoError(t, err)
	assert.Equal(t, group.Title, gp.Group.String())
	require.Len(t, gp.Page.Items, 1)
	assert.Equal(t, "in group", gp.Page.Items[0].Text)

	other, err := f.content.GroupPosts(ctx, "other", "1")
	require.NoError(t, err)
	assert.Empty(t, other.Page.Items)

	_, err = f.content.GroupPosts(ctx, "missing", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfile_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.content.Profile(context.Background(), "nobody", "", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.user(t, "reader")
	author := f.user(t, "author")
	f.post(t, author, "followed post")

	require.NoError(t, f.follows.Follow(ctx, reader.ID, "author"))
	require.NoError(t, f.follows.Follow(ctx, reader.ID, "author"))

	followers, err := f.store.CountFollowers(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, followers, "following twice keeps one edge")

	profile, err := f.content.Profile(ctx, "author", reader.ID, "1")
	require.NoError(t, err)
	assert.True(t, profile.Following)
	assert.EqualValues(t, 1, profile.FollowerCount)

	timeline, err := f.follows.Timeline(ctx, reader.ID, "1")
	require.NoError(t, err)
	require.Len(t, timeline.Items, 1)
	assert.Equal(t, "followed post", timeline.Items[0].Text)

	require.NoError(t, f.follows.Unfollow(ctx, reader.ID, "author"))
	require.NoError(t, f.follows.Unfollow(ctx, reader.ID, "author"))
	followers, err = f.store.CountFollowers(ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, followers)

	timeline, err = f.follows.Timeline(ctx, reader.ID, "1")
	require.NoError(t, err)
	assert.Empty(t, timeline.Items)

	var followEvents []string
	for _, typ := range f.pub.types() {
		if strings.HasPrefix(typ, "follow.") {
			followEvents = append(followEvents, typ)
		}
	}
	assert.Equal(t, []string{events.TypeFollowCreated, events.TypeFollowDeleted}, followEvents)
}

func TestFollow_SelfIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.user(t, "me")

	require.NoError(t, f.follows.Follow(ctx, me.ID, "me"))
	ok, err := f.store.IsFollowing(ctx, me.ID, me.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollow_UnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.user(t, "me")

	assert.ErrorIs(t, f.follows.Follow(ctx, me.ID, "ghost"), ErrNotFound)
	assert.ErrorIs(t, f.follows.Unfollow(ctx, me.ID, "ghost"), ErrNotFound)
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{}
	ve.add("text", msgRequired)
	ve.add("group", msgInvalidChoice)
	ve.add("text", "ignored")
	assert.Equal(t, "validation failed: group: "+msgInvalidChoice+"; text: "+msgRequired, ve.Error())
}

var storageAll = storage.PostFilter{}
