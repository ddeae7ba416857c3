package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an identity known to the blog. Accounts themselves are managed by
// the identity provider; a row is materialised the first time a verified
// username shows up.
type User struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username    string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex"`
	DisplayName string    `json:"displayName" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Group is a topic board posts may belong to.
type Group struct {
	ID          string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Title       string `json:"title" gorm:"type:varchar(200);not null"`
	Slug        string `json:"slug" gorm:"type:varchar(200);not null;uniqueIndex"`
	Description string `json:"description" gorm:"type:text"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

func (g Group) String() string {
	return g.Title
}

// Post представляет пост в системе.
type Post struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Image     string    `json:"image,omitempty" gorm:"type:varchar(255)"`
	GroupID   *string   `json:"groupId,omitempty" gorm:"type:varchar(36);index"`
	AuthorID  string    `json:"authorId" gorm:"type:varchar(36);not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`

	Author   *User      `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Group    *Group     `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL"`
	Comments []*Comment `json:"-" gorm:"foreignKey:PostID"` // gorm only
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// String returns the first 15 characters of the post text.
func (p Post) String() string {
	r := []rune(p.Text)
	if len(r) > 15 {
		r = r[:15]
	}
	return string(r)
}

// Comment представляет комментарий к посту.
type Comment struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	PostID    string    `json:"postId" gorm:"type:varchar(36);not null;index"`
	AuthorID  string    `json:"authorId" gorm:"type:varchar(36);not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`

	Author *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Follow is a directed edge: FollowerID sees AuthorID's posts in their feed.
type Follow struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	FollowerID string    `json:"followerId" gorm:"type:varchar(36);not null;uniqueIndex:idx_follow_pair"`
	AuthorID   string    `json:"authorId" gorm:"type:varchar(36);not null;uniqueIndex:idx_follow_pair;index"`
	CreatedAt  time.Time `json:"createdAt" gorm:"not null"`

	Follower *User `json:"-" gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Author   *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
