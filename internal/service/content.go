// Package service holds the blog's business rules: post and comment
// authoring, the read models behind every listing, and the follow graph.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/media"
	"github.com/UkralStul/blog-service/internal/pagination"
	"github.com/UkralStul/blog-service/internal/storage"
)

// PostPage is one page of posts, newest first.
type PostPage = pagination.Page[*domain.Post]

// GroupPosts is a group with one page of its posts.
type GroupPosts struct {
	Group *domain.Group
	Page  *PostPage
}

// Profile is an author with their posts and follow state.
type Profile struct {
	Author        *domain.User
	PostCount     int
	FollowerCount int64
	Following     bool
	Page          *PostPage
}

// PostDetail is a post with its comments, oldest first.
type PostDetail struct {
	Post     *domain.Post
	Comments []*domain.Comment
}

// ContentService creates, edits and lists posts and comments.
type ContentService struct {
	store     storage.Storage
	files     media.Storage
	paginator pagination.Paginator
	observer  *events.CommentObserver
	publisher events.Publisher
}

// NewContentService wires the service. A nil observer or publisher turns the
// corresponding notifications off.
func NewContentService(
	store storage.Storage,
	files media.Storage,
	paginator pagination.Paginator,
	observer *events.CommentObserver,
	publisher events.Publisher,
) *ContentService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ContentService{
		store:     store,
		files:     files,
		paginator: paginator,
		observer:  observer,
		publisher: publisher,
	}
}

// CreatePost validates the form and saves a post written by authorID.
func (s *ContentService) CreatePost(ctx context.Context, authorID string, in PostInput) (*domain.Post, error) {
	groupID, image, err := s.cleanPost(ctx, &in)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		Text:     in.Text,
		GroupID:  groupID,
		AuthorID: authorID,
	}
	if image != nil {
		if post.Image, err = s.storeImage(ctx, image); err != nil {
			return nil, err
		}
	}

	created, err := s.store.CreatePost(ctx, post)
	if err != nil {
		return nil, notFound(err, "failed to create post")
	}

	l := logging.Ctx(ctx)
	l.Info().
		Str(logging.FieldPostID, created.ID).
		Str(logging.FieldAuthorID, authorID).
		Msg("post created")
	s.publish(ctx, events.TypePostCreated, created.ID, created)

	return created, nil
}

// EditPost replaces text, group and (when uploaded) image of postID. Only
// the author may edit; anyone else gets ErrForbidden and nothing changes.
func (s *ContentService) EditPost(ctx context.Context, postID, editorID string, in PostInput) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, "post "+postID)
	}
	if post.AuthorID != editorID {
		return nil, ErrForbidden
	}

	groupID, image, err := s.cleanPost(ctx, &in)
	if err != nil {
		return nil, err
	}

	post.Text = in.Text
	post.GroupID = groupID
	if image != nil {
		if post.Image, err = s.storeImage(ctx, image); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdatePost(ctx, post)
	if err != nil {
		return nil, notFound(err, "failed to update post")
	}

	l := logging.Ctx(ctx)
	l.Info().Str(logging.FieldPostID, postID).Msg("post updated")
	s.publish(ctx, events.TypePostUpdated, updated.ID, updated)

	return updated, nil
}

// CreateComment adds a comment to postID and pushes it to live subscribers.
func (s *ContentService) CreateComment(ctx context.Context, postID, authorID string, in CommentInput) (*domain.Comment, error) {
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return nil, notFound(err, "post "+postID)
	}

	in.normalize()
	ve := &ValidationError{}
	if err := check(ve, in); err != nil {
		return nil, err
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	comment, err := s.store.CreateComment(ctx, &domain.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Text:     in.Text,
	})
	if err != nil {
		return nil, notFound(err, "failed to create comment")
	}

	if s.observer != nil {
		s.observer.Notify(comment)
	}
	s.publish(ctx, events.TypeCommentCreated, comment.ID, comment)

	return comment, nil
}

// Index returns a page of all posts.
func (s *ContentService) Index(ctx context.Context, page string) (*PostPage, error) {
	return s.listPosts(ctx, storage.PostFilter{}, page)
}

// GroupPosts returns the group identified by slug and a page of its posts.
func (s *ContentService) GroupPosts(ctx context.Context, slug, page string) (*GroupPosts, error) {
	group, err := s.store.GetGroupBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "group "+slug)
	}
	posts, err := s.listPosts(ctx, storage.PostFilter{GroupID: group.ID}, page)
	if err != nil {
		return nil, err
	}
	return &GroupPosts{Group: group, Page: posts}, nil
}

// Profile returns username's posts and counters. viewerID may be empty for
// anonymous viewers, in which case Following is false.
func (s *ContentService) Profile(ctx context.Context, username, viewerID, page string) (*Profile, error) {
	author, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err, "user "+username)
	}

	posts, err := s.listPosts(ctx, storage.PostFilter{AuthorID: author.ID}, page)
	if err != nil {
		return nil, err
	}

	followers, err := s.store.CountFollowers(ctx, author.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}

	following := false
	if viewerID != "" {
		if following, err = s.store.IsFollowing(ctx, viewerID, author.ID); err != nil {
			return nil, fmt.Errorf("failed to check follow: %w", err)
		}
	}

	return &Profile{
		Author:        author,
		PostCount:     posts.TotalItems,
		FollowerCount: followers,
		Following:     following,
		Page:          posts,
	}, nil
}

// PostDetail returns the post with its comments.
func (s *ContentService) PostDetail(ctx context.Context, postID string) (*PostDetail, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, "post "+postID)
	}
	comments, err := s.store.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return &PostDetail{Post: post, Comments: comments}, nil
}

// Post returns a single post.
func (s *ContentService) Post(ctx context.Context, postID string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, "post "+postID)
	}
	return post, nil
}

// Groups returns every group, the choices of the post form.
func (s *ContentService) Groups(ctx context.Context) ([]*domain.Group, error) {
	return s.store.ListGroups(ctx)
}

func (s *ContentService) listPosts(ctx context.Context, filter storage.PostFilter, page string) (*PostPage, error) {
	return pagination.Paginate(ctx, s.paginator, page,
		func(ctx context.Context) (int, error) {
			return s.store.CountPosts(ctx, filter)
		},
		func(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
			return s.store.ListPosts(ctx, filter, limit, offset)
		},
	)
}

// cleanPost validates the post form. It resolves the group and sniffs the
// image, reporting every invalid field at once.
func (s *ContentService) cleanPost(ctx context.Context, in *PostInput) (*string, *media.Image, error) {
	in.normalize()

	ve := &ValidationError{}
	if err := check(ve, *in); err != nil {
		return nil, nil, err
	}

	var groupID *string
	if in.GroupID != "" {
		if _, ok := ve.Fields["group"]; !ok {
			group, err := s.store.GetGroupByID(ctx, in.GroupID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				ve.add("group", msgInvalidChoice)
			case err != nil:
				return nil, nil, fmt.Errorf("failed to load group: %w", err)
			default:
				groupID = &group.ID
			}
		}
	}

	var image *media.Image
	if in.Image != nil {
		img, err := media.ReadImage(in.Image)
		switch {
		case errors.Is(err, media.ErrNotImage), errors.Is(err, media.ErrImageTooLarge):
			ve.add("image", imageMessage(err))
		case err != nil:
			return nil, nil, err
		default:
			image = img
		}
	}

	if err := ve.orNil(); err != nil {
		return nil, nil, err
	}
	return groupID, image, nil
}

func imageMessage(err error) string {
	if errors.Is(err, media.ErrImageTooLarge) {
		return "The image is too large."
	}
	return "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
}

func (s *ContentService) storeImage(ctx context.Context, img *media.Image) (string, error) {
	if s.files == nil {
		return "", errors.New("media storage is not configured")
	}
	key, err := img.Store(ctx, s.files)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

// publish sends an event; failures are logged and never fail the request.
func (s *ContentService) publish(ctx context.Context, eventType, subject string, payload interface{}) {
	publish(ctx, s.publisher, eventType, subject, payload)
}

func publish(ctx context.Context, p events.Publisher, eventType, subject string, payload interface{}) {
	ev, err := events.NewEvent(eventType, subject, payload)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("event", eventType).Str("subject", subject).Msg("failed to publish event")
	}
}
