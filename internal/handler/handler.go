// Package handler exposes the blog over HTTP.
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/UkralStul/blog-service/internal/auth"
	"github.com/UkralStul/blog-service/internal/cache"
	"github.com/UkralStul/blog-service/internal/dataloader"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/media"
	"github.com/UkralStul/blog-service/internal/service"
	"github.com/UkralStul/blog-service/internal/storage"
)

// APIPrefix is where every route is mounted.
const APIPrefix = "/api/v1"

// Config wires the handler's collaborators.
type Config struct {
	Store    storage.Storage
	Content  *service.ContentService
	Follows  *service.FollowService
	Files    media.Storage
	Cache    cache.Cache
	Observer *events.CommentObserver

	// Identify resolves the caller; nil leaves every request anonymous.
	Identify  func(http.Handler) http.Handler
	LoginURL  string
	URLExpiry time.Duration
}

// Handler handles HTTP requests for the blog.
type Handler struct {
	store     storage.Storage
	content   *service.ContentService
	follows   *service.FollowService
	files     media.Storage
	cache     cache.Cache
	observer  *events.CommentObserver
	identify  func(http.Handler) http.Handler
	loginURL  string
	urlExpiry time.Duration
	upgrader  websocket.Upgrader
}

// New creates a new HTTP handler.
func New(cfg Config) *Handler {
	if cfg.Observer == nil {
		cfg.Observer = events.NewCommentObserver()
	}
	return &Handler{
		store:     cfg.Store,
		content:   cfg.Content,
		follows:   cfg.Follows,
		files:     cfg.Files,
		cache:     cfg.Cache,
		observer:  cfg.Observer,
		identify:  cfg.Identify,
		loginURL:  cfg.LoginURL,
		urlExpiry: cfg.URLExpiry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers all routes onto the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route(APIPrefix, func(r chi.Router) {
		if h.identify != nil {
			r.Use(h.identify)
		}
		r.Use(func(next http.Handler) http.Handler {
			return dataloader.Middleware(h.store, next)
		})

		r.Get("/posts", h.Index)
		r.Get("/posts/{postID}", h.PostDetail)
		r.Get("/posts/{postID}/comments/ws", h.CommentStream)
		r.Get("/group/{slug}", h.GroupPosts)
		r.Get("/profile/{username}", h.Profile)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(h.loginURL))

			r.Get("/posts/new", h.PostCreateForm)
			r.Post("/posts", h.PostCreate)
			r.Get("/posts/{postID}/edit", h.PostEditForm)
			r.Post("/posts/{postID}/edit", h.PostEdit)
			r.Post("/posts/{postID}/comment", h.AddComment)
			r.Get("/profile/{username}/follow", h.ProfileFollow)
			r.Get("/profile/{username}/unfollow", h.ProfileUnfollow)
			r.Get("/follow", h.FollowIndex)
			r.Post("/cache/clear", h.ClearCache)
		})
	})
}

// Routes returns a router with every route registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postURL(id string) string {
	return APIPrefix + "/posts/" + url.PathEscape(id)
}

func profileURL(username string) string {
	return APIPrefix + "/profile/" + url.PathEscape(username)
}

func page(r *http.Request) string {
	return r.URL.Query().Get("page")
}

// Index handles GET /api/v1/posts. Rendered pages are cached per page
// parameter for the cache TTL.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logging.Ctx(ctx)
	key := cache.IndexPageKey(page(r))

	if h.cache != nil {
		body, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		if ok {
			writeRaw(w, http.StatusOK, body)
			return
		}
	}

	posts, err := h.content.Index(ctx, page(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	view, err := h.pageView(ctx, posts)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	body, err := encode(Response{Success: true, Data: view})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body); err != nil {
			l.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	writeRaw(w, http.StatusOK, body)
}

// GroupPosts handles GET /api/v1/group/{slug}.
func (h *Handler) GroupPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gp, err := h.content.GroupPosts(ctx, chi.URLParam(r, "slug"), page(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	view, err := h.pageView(ctx, gp.Page)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, map[string]interface{}{
		"group": groupView(gp.Group),
		"page":  view,
	})
}

// Profile handles GET /api/v1/profile/{username}.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewerID := ""
	if u := auth.UserFrom(ctx); u != nil {
		viewerID = u.ID
	}

	p, err := h.content.Profile(ctx, chi.URLParam(r, "username"), viewerID, page(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	view, err := h.pageView(ctx, p.Page)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, map[string]interface{}{
		"author":        userView(p.Author),
		"postCount":     p.PostCount,
		"followerCount": p.FollowerCount,
		"following":     p.Following,
		"page":          view,
	})
}

// PostDetail handles GET /api/v1/posts/{postID}.
func (h *Handler) PostDetail(w http.ResponseWriter, r *http.Request) {
	data, err := h.detailData(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, data)
}

func (h *Handler) detailData(r *http.Request) (map[string]interface{}, error) {
	ctx := r.Context()

	d, err := h.content.PostDetail(ctx, chi.URLParam(r, "postID"))
	if err != nil {
		return nil, err
	}
	post, err := h.postView(ctx, d.Post)
	if err != nil {
		return nil, err
	}
	comments, err := h.commentViews(ctx, d.Comments)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"post":     post,
		"author":   post.Author,
		"comments": comments,
	}, nil
}

// PostCreateForm handles GET /api/v1/posts/new.
func (h *Handler) PostCreateForm(w http.ResponseWriter, r *http.Request) {
	data, err := h.formData(r, nil)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, data)
}

// PostCreate handles POST /api/v1/posts and redirects to the author's profile.
func (h *Handler) PostCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFrom(ctx)

	in, cleanup, err := parsePostForm(r)
	if err != nil {
		errorResponse(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	defer cleanup()

	if _, err := h.content.CreatePost(ctx, user.ID, in); err != nil {
		h.formError(w, r, err, nil)
		return
	}
	redirect(w, r, profileURL(user.Username))
}

// PostEditForm handles GET /api/v1/posts/{postID}/edit.
func (h *Handler) PostEditForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	post, err := h.content.Post(ctx, chi.URLParam(r, "postID"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	data, err := h.formData(r, post)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, data)
}

// PostEdit handles POST /api/v1/posts/{postID}/edit. Only the author may
// edit; the result is a redirect to the post.
func (h *Handler) PostEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFrom(ctx)
	postID := chi.URLParam(r, "postID")

	in, cleanup, err := parsePostForm(r)
	if err != nil {
		errorResponse(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	defer cleanup()

	if _, err := h.content.EditPost(ctx, postID, user.ID, in); err != nil {
		h.formError(w, r, err, func() (interface{}, error) {
			post, err := h.content.Post(ctx, postID)
			if err != nil {
				return nil, err
			}
			return h.formData(r, post)
		})
		return
	}

	l := logging.Ctx(ctx)
	l.Debug().Str(logging.FieldPostID, postID).Msg("post edited")
	redirect(w, r, postURL(postID))
}

// AddComment handles POST /api/v1/posts/{postID}/comment.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFrom(ctx)
	postID := chi.URLParam(r, "postID")

	if err := r.ParseForm(); err != nil {
		errorResponse(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	in := service.CommentInput{Text: r.PostFormValue("text")}
	if _, err := h.content.CreateComment(ctx, postID, user.ID, in); err != nil {
		h.formError(w, r, err, func() (interface{}, error) {
			return h.detailData(r)
		})
		return
	}
	redirect(w, r, postURL(postID))
}

// ProfileFollow handles GET /api/v1/profile/{username}/follow.
func (h *Handler) ProfileFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	if err := h.follows.Follow(ctx, auth.UserFrom(ctx).ID, username); err != nil {
		writeError(w, r, err, nil)
		return
	}
	redirect(w, r, profileURL(username))
}

// ProfileUnfollow handles GET /api/v1/profile/{username}/unfollow.
func (h *Handler) ProfileUnfollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	if err := h.follows.Unfollow(ctx, auth.UserFrom(ctx).ID, username); err != nil {
		writeError(w, r, err, nil)
		return
	}
	redirect(w, r, profileURL(username))
}

// FollowIndex handles GET /api/v1/follow, the caller's timeline.
func (h *Handler) FollowIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFrom(ctx)

	posts, err := h.follows.Timeline(ctx, user.ID, page(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	view, err := h.pageView(ctx, posts)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	success(w, r, map[string]interface{}{
		"author": userView(user),
		"page":   view,
	})
}

// ClearCache handles POST /api/v1/cache/clear.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if err := h.cache.Clear(r.Context()); err != nil {
			writeError(w, r, err, nil)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// formData is the context of the post form: group choices and, on edit,
// the post being edited.
func (h *Handler) formData(r *http.Request, post *domain.Post) (map[string]interface{}, error) {
	ctx := r.Context()

	groups, err := h.content.Groups(ctx)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"groups": groupViews(groups),
		"isEdit": post != nil,
	}
	if post != nil {
		view, err := h.postView(ctx, post)
		if err != nil {
			return nil, err
		}
		data["post"] = view
	}
	return data, nil
}

// formError answers a failed submission. For a rejected form the response
// carries the form context produced by load (or the plain choices when load
// is nil).
func (h *Handler) formError(w http.ResponseWriter, r *http.Request, err error, load func() (interface{}, error)) {
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		writeError(w, r, err, nil)
		return
	}

	var (
		data    interface{}
		loadErr error
	)
	if load != nil {
		data, loadErr = load()
	} else {
		data, loadErr = h.formData(r, nil)
	}
	if loadErr != nil {
		writeError(w, r, loadErr, nil)
		return
	}
	writeError(w, r, err, data)
}

// parsePostForm reads text, group and the optional image from a urlencoded
// or multipart body. cleanup releases the uploaded file.
func parsePostForm(r *http.Request) (service.PostInput, func(), error) {
	cleanup := func() {}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(media.MaxImageSize + 1<<20); err != nil {
			return service.PostInput{}, cleanup, err
		}
	} else if err := r.ParseForm(); err != nil {
		return service.PostInput{}, cleanup, err
	}

	in := service.PostInput{
		Text:    r.PostFormValue("text"),
		GroupID: r.PostFormValue("group"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		cleanup = func() { _ = file.Close() }
		// Пустое поле файла формы означает "без изображения"
		if header.Filename != "" || header.Size > 0 {
			in.Image = &media.Upload{Filename: header.Filename, Content: file}
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return service.PostInput{}, cleanup, err
	}

	return in, cleanup, nil
}
