package handler

import (
	"context"
	"time"

	"github.com/UkralStul/blog-service/internal/dataloader"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/service"
)

type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

type GroupView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type PostView struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Text    string     `json:"text"`
	Image   string     `json:"image,omitempty"`
	PubDate time.Time  `json:"pubDate"`
	Author  *UserView  `json:"author"`
	Group   *GroupView `json:"group,omitempty"`
}

type CommentView struct {
	ID      string    `json:"id"`
	PostID  string    `json:"postId"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
	Author  *UserView `json:"author"`
}

type PageView struct {
	Items       []*PostView `json:"items"`
	Number      int         `json:"number"`
	NumPages    int         `json:"numPages"`
	PerPage     int         `json:"perPage"`
	TotalItems  int         `json:"totalItems"`
	HasNext     bool        `json:"hasNext"`
	HasPrevious bool        `json:"hasPrevious"`
}

func userView(u *domain.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

func groupView(g *domain.Group) *GroupView {
	if g == nil {
		return nil
	}
	return &GroupView{ID: g.ID, Title: g.String(), Slug: g.Slug, Description: g.Description}
}

func groupViews(groups []*domain.Group) []*GroupView {
	out := make([]*GroupView, len(groups))
	for i, g := range groups {
		out[i] = groupView(g)
	}
	return out
}

// pageView renders a page of posts, loading authors and groups in one batch
// each.
func (h *Handler) pageView(ctx context.Context, page *service.PostPage) (*PageView, error) {
	items, err := h.postViews(ctx, page.Items)
	if err != nil {
		return nil, err
	}
	return &PageView{
		Items:       items,
		Number:      page.Number,
		NumPages:    page.NumPages,
		PerPage:     page.PerPage,
		TotalItems:  page.TotalItems,
		HasNext:     page.HasNext(),
		HasPrevious: page.HasPrevious(),
	}, nil
}

func (h *Handler) postView(ctx context.Context, p *domain.Post) (*PostView, error) {
	views, err := h.postViews(ctx, []*domain.Post{p})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (h *Handler) postViews(ctx context.Context, posts []*domain.Post) ([]*PostView, error) {
	loaders := dataloader.For(ctx)

	authorIDs := make([]string, 0, len(posts))
	groupIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
		if p.GroupID != nil {
			groupIDs = append(groupIDs, *p.GroupID)
		}
	}

	authors, err := loaders.Users(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	groups, err := loaders.Groups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*PostView, len(posts))
	for i, p := range posts {
		v := &PostView{
			ID:      p.ID,
			Title:   p.String(),
			Text:    p.Text,
			Image:   h.imageURL(ctx, p.Image),
			PubDate: p.CreatedAt,
			Author:  userView(authors[p.AuthorID]),
		}
		if p.GroupID != nil {
			v.Group = groupView(groups[*p.GroupID])
		}
		out[i] = v
	}
	return out, nil
}

func (h *Handler) commentViews(ctx context.Context, comments []*domain.Comment) ([]*CommentView, error) {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.AuthorID
	}
	authors, err := dataloader.For(ctx).Users(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*CommentView, len(comments))
	for i, c := range comments {
		out[i] = &CommentView{
			ID:      c.ID,
			PostID:  c.PostID,
			Text:    c.Text,
			Created: c.CreatedAt,
			Author:  userView(authors[c.AuthorID]),
		}
	}
	return out, nil
}

// imageURL resolves a media key. A failure only drops the image from the
// response.
func (h *Handler) imageURL(ctx context.Context, key string) string {
	if key == "" || h.files == nil {
		return ""
	}
	url, err := h.files.GetURL(ctx, key, h.urlExpiry)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("failed to resolve image url")
		return ""
	}
	return url
}
