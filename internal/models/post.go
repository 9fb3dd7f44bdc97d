// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
	PostArchived  PostStatus = "ARCHIVED"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	}
	return false
}

// Post represents a blog post.
type Post struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string         `gorm:"not null" json:"title"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Thumbnail  *string        `json:"thumbnail,omitempty"`
	Tags       pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	IsFeatured bool           `gorm:"not null;default:false" json:"isFeatured"`
	Status     PostStatus     `gorm:"type:varchar(16);not null;default:PUBLISHED;index" json:"status"`
	AuthorID   string         `gorm:"type:uuid;not null;index" json:"authorId"`
	Author     *UserSummary   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Views      int64          `gorm:"not null;default:0" json:"views"`
	// CommentCount is not persisted; computed at query time
	CommentCount int64 `gorm:"->;-:migration" json:"commentCount"`
	// ContentHTML is rendered from Content on single-post reads
	ContentHTML string    `gorm:"-" json:"contentHtml,omitempty"`
	Comments    []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = pq.StringArray{}
	}
	return nil
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return p.AuthorID == userID
}

// PostSummary is the {id, title} projection attached to comments.
type PostSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	AuthorID string `json:"-"`
}

// TableName points the projection at the posts table.
func (PostSummary) TableName() string { return "posts" }

// PostStats is the admin dashboard aggregate.
type PostStats struct {
	TotalPosts       int64 `json:"totalPosts"`
	PublishedPosts   int64 `json:"publishedPosts"`
	DraftPosts       int64 `json:"draftPosts"`
	ArchivedPosts    int64 `json:"archivedPosts"`
	TotalViews       int64 `json:"totalViews"`
	TotalComments    int64 `json:"totalComments"`
	ApprovedComments int64 `json:"approvedComments"`
	RejectedComments int64 `json:"rejectedComments"`
	PendingComments  int64 `json:"pendingComments"`
	TotalUsers       int64 `json:"totalUsers"`
	AdminUsers       int64 `json:"adminUsers"`
	RegularUsers     int64 `json:"regularUsers"`
}
