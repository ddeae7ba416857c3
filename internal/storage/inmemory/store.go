package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"
)

type followKey struct {
	followerID string
	authorID   string
}

// Store реализует интерфейс Storage в памяти.
// Values are copied on the way in and out so callers never share state with
// the store, the same as with a database.
type Store struct {
	mu             sync.RWMutex
	users          map[string]*domain.User
	usersByName    map[string]string // map[username]userID
	groups         map[string]*domain.Group
	groupsBySlug   map[string]string // map[slug]groupID
	posts          map[string]*domain.Post
	postOrder      []string // insertion order, tie-breaker for equal timestamps
	comments       map[string]*domain.Comment
	commentsByPost map[string][]string // map[postID][]commentID
	follows        map[followKey]*domain.Follow
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:          make(map[string]*domain.User),
		usersByName:    make(map[string]string),
		groups:         make(map[string]*domain.Group),
		groupsBySlug:   make(map[string]string),
		posts:          make(map[string]*domain.Post),
		comments:       make(map[string]*domain.Comment),
		commentsByPost: make(map[string][]string),
		follows:        make(map[followKey]*domain.Follow),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[user.Username]; ok {
		return nil, fmt.Errorf("username %q: %w", user.Username, storage.ErrDuplicate)
	}
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	s.users[u.ID] = &u
	s.usersByName[u.Username] = u.ID

	out := u
	return &out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, storage.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, storage.ErrNotFound)
	}
	out := *s.users[id]
	return &out, nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groupsBySlug[group.Slug]; ok {
		return nil, fmt.Errorf("group slug %q: %w", group.Slug, storage.ErrDuplicate)
	}
	g := *group
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.groups[g.ID] = &g
	s.groupsBySlug[g.Slug] = g.ID

	out := g
	return &out, nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.groupsBySlug[slug]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", slug, storage.ErrNotFound)
	}
	out := *s.groups[id]
	return &out, nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group with id %s: %w", id, storage.ErrNotFound)
	}
	out := *g
	return &out, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]*domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out := *g
		groups = append(groups, &out)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Title < groups[j].Title
	})
	return groups, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[post.AuthorID]; !ok {
		return nil, fmt.Errorf("author %s: %w", post.AuthorID, storage.ErrNotFound)
	}
	if post.GroupID != nil {
		if _, ok := s.groups[*post.GroupID]; !ok {
			return nil, fmt.Errorf("group %s: %w", *post.GroupID, storage.ErrNotFound)
		}
	}

	p := clonePost(post)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	s.posts[p.ID] = p
	s.postOrder = append(s.postOrder, p.ID)

	return clonePost(p), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", id, storage.ErrNotFound)
	}
	return clonePost(post), nil
}

// UpdatePost overwrites the editable fields; author and creation time stay.
func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", post.ID, storage.ErrNotFound)
	}
	if post.GroupID != nil {
		if _, ok := s.groups[*post.GroupID]; !ok {
			return nil, fmt.Errorf("group %s: %w", *post.GroupID, storage.ErrNotFound)
		}
	}

	updated := clonePost(existing)
	updated.Text = post.Text
	updated.Image = post.Image
	updated.GroupID = cloneString(post.GroupID)
	s.posts[post.ID] = updated

	return clonePost(updated), nil
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterPosts(filter)), nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, limit, offset int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.filterPosts(filter)

	start := offset
	if start >= len(all) {
		return []*domain.Post{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	page := make([]*domain.Post, 0, end-start)
	for _, p := range all[start:end] {
		page = append(page, clonePost(p))
	}
	return page, nil
}

// filterPosts returns matching posts newest first. Caller holds the lock.
func (s *Store) filterPosts(filter storage.PostFilter) []*domain.Post {
	var followed map[string]bool
	if filter.FollowerID != "" {
		followed = make(map[string]bool)
		for k := range s.follows {
			if k.followerID == filter.FollowerID {
				followed[k.authorID] = true
			}
		}
	}

	// Обходим в обратном порядке вставки, чтобы при равном времени
	// более поздний пост шёл первым.
	result := make([]*domain.Post, 0, len(s.postOrder))
	for i := len(s.postOrder) - 1; i >= 0; i-- {
		p := s.posts[s.postOrder[i]]
		if filter.AuthorID != "" && p.AuthorID != filter.AuthorID {
			continue
		}
		if filter.GroupID != "" && (p.GroupID == nil || *p.GroupID != filter.GroupID) {
			continue
		}
		if followed != nil && !followed[p.AuthorID] {
			continue
		}
		result = append(result, p)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка поста
	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, fmt.Errorf("post with id %s: %w", comment.PostID, storage.ErrNotFound)
	}
	if _, ok := s.users[comment.AuthorID]; !ok {
		return nil, fmt.Errorf("author %s: %w", comment.AuthorID, storage.ErrNotFound)
	}

	c := *comment
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	s.comments[c.ID] = &c
	s.commentsByPost[c.PostID] = append(s.commentsByPost[c.PostID], c.ID)

	out := c
	return &out, nil
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.commentsByPost[postID]
	comments := make([]*domain.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			out := *c
			comments = append(comments, &out)
		}
	}
	// Сортируем по времени создания, старые первыми
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// === Follow Methods ===

func (s *Store) Follow(ctx context.Context, followerID, authorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followerID]; !ok {
		return false, fmt.Errorf("follower %s: %w", followerID, storage.ErrNotFound)
	}
	if _, ok := s.users[authorID]; !ok {
		return false, fmt.Errorf("author %s: %w", authorID, storage.ErrNotFound)
	}

	key := followKey{followerID: followerID, authorID: authorID}
	if _, ok := s.follows[key]; ok {
		return false, nil
	}
	s.follows[key] = &domain.Follow{
		ID:         uuid.NewString(),
		FollowerID: followerID,
		AuthorID:   authorID,
		CreatedAt:  now(),
	}
	return true, nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, authorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := followKey{followerID: followerID, authorID: authorID}
	if _, ok := s.follows[key]; !ok {
		return false, nil
	}
	delete(s.follows, key)
	return true, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[followKey{followerID: followerID, authorID: authorID}]
	return ok, nil
}

func (s *Store) CountFollowers(ctx context.Context, authorID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.follows {
		if k.authorID == authorID {
			n++
		}
	}
	return n, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out := *u
			result[id] = &out
		}
	}
	return result, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.Group, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			out := *g
			result[id] = &out
		}
	}
	return result, nil
}

func clonePost(p *domain.Post) *domain.Post {
	out := *p
	out.GroupID = cloneString(p.GroupID)
	out.Author = nil
	out.Group = nil
	out.Comments = nil
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

var _ storage.Storage = (*Store)(nil)
