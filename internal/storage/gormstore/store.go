package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
)

// Store реализует интерфейс Storage поверх GORM (postgres, mysql, sqlite).
type Store struct {
	db *gorm.DB
}

// New wraps an opened and migrated connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translate maps GORM errors onto the storage sentinels.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, storage.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, translate(err, fmt.Sprintf("username %q", user.Username))
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user with id "+id)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("user %q", username))
	}
	return &user, nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Group{}).Where("slug = ?", group.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(group).Error
	})
	if err != nil {
		return nil, translate(err, fmt.Sprintf("group slug %q", group.Slug))
	}
	return group, nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).First(&group, "slug = ?", slug).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("group %q", slug))
	}
	return &group, nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translate(err, "group with id "+id)
	}
	return &group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := s.db.WithContext(ctx).Order("title ASC").Find(&groups).Error
	return groups, translate(err, "list groups")
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &domain.User{}, post.AuthorID, "author"); err != nil {
			return err
		}
		if post.GroupID != nil {
			if err := ensureExists(tx, &domain.Group{}, *post.GroupID, "group"); err != nil {
				return err
			}
		}
		// GORM заполнит CreatedAt, если оно не задано
		return tx.Omit(clause.Associations).Create(post).Error
	})
	if err != nil {
		return nil, translate(err, "create post")
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		return nil, translate(err, "post with id "+id)
	}
	return &post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	var existing domain.Post
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&existing, "id = ?", post.ID).Error; err != nil {
			return err
		}
		if post.GroupID != nil {
			if err := ensureExists(tx, &domain.Group{}, *post.GroupID, "group"); err != nil {
				return err
			}
		}
		existing.Text = post.Text
		existing.Image = post.Image
		existing.GroupID = post.GroupID
		return tx.Omit(clause.Associations).Save(&existing).Error
	})
	if err != nil {
		return nil, translate(err, "update post "+post.ID)
	}
	return &existing, nil
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	var count int64
	err := s.postQuery(ctx, filter).Model(&domain.Post{}).Count(&count).Error
	if err != nil {
		return 0, translate(err, "count posts")
	}
	return int(count), nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, limit, offset int) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := s.postQuery(ctx, filter).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, translate(err, "list posts")
}

func (s *Store) postQuery(ctx context.Context, filter storage.PostFilter) *gorm.DB {
	q := s.db.WithContext(ctx)
	if filter.AuthorID != "" {
		q = q.Where("author_id = ?", filter.AuthorID)
	}
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.FollowerID != "" {
		followed := s.db.Model(&domain.Follow{}).Select("author_id").Where("follower_id = ?", filter.FollowerID)
		q = q.Where("author_id IN (?)", followed)
	}
	return q
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	// Проверяем существование поста и создаём комментарий в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &domain.Post{}, comment.PostID, "post"); err != nil {
			return err
		}
		if err := ensureExists(tx, &domain.User{}, comment.AuthorID, "author"); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(comment).Error
	})
	if err != nil {
		return nil, translate(err, "create comment")
	}
	return comment, nil
}

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, translate(err, "comments of post "+postID)
}

// === Follow Methods ===

// Follow is get-or-create on the (follower_id, author_id) unique index.
func (s *Store) Follow(ctx context.Context, followerID, authorID string) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &domain.User{}, followerID, "follower"); err != nil {
			return err
		}
		if err := ensureExists(tx, &domain.User{}, authorID, "author"); err != nil {
			return err
		}
		follow := domain.Follow{FollowerID: followerID, AuthorID: authorID}
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "follower_id"}, {Name: "author_id"}},
				DoNothing: true,
			}).
			Create(&follow)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, translate(err, "follow")
	}
	return created, nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, authorID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("follower_id = ? AND author_id = ?", followerID, authorID).
		Delete(&domain.Follow{})
	if result.Error != nil {
		return false, translate(result.Error, "unfollow")
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("follower_id = ? AND author_id = ?", followerID, authorID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "is following")
	}
	return count > 0, nil
}

func (s *Store) CountFollowers(ctx context.Context, authorID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("author_id = ?", authorID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count followers")
	}
	return count, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	var users []*domain.User
	// Загружаем всех пользователей одним запросом
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "users by ids")
	}
	result := make(map[string]*domain.User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	var groups []*domain.Group
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, translate(err, "groups by ids")
	}
	result := make(map[string]*domain.Group, len(groups))
	for _, g := range groups {
		result[g.ID] = g
	}
	return result, nil
}

func ensureExists(tx *gorm.DB, model interface{}, id, what string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %s: %w", what, id, gorm.ErrRecordNotFound)
	}
	return nil
}

var _ storage.Storage = (*Store)(nil)
