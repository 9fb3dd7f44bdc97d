package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "PENDING"
	CommentApproved CommentStatus = "APPROVED"
	CommentRejected CommentStatus = "REJECT"
)

// Valid reports whether s is a known moderation state.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected:
		return true
	}
	return false
}

// Comment is a post comment; ParentID links replies to the comment they answer.
type Comment struct {
	ID        string        `gorm:"type:uuid;primaryKey" json:"id"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	AuthorID  string        `gorm:"type:uuid;not null;index" json:"authorId"`
	Author    *UserSummary  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID    string        `gorm:"type:uuid;not null;index" json:"postId"`
	Post      *PostSummary  `gorm:"foreignKey:PostID" json:"post,omitempty"`
	ParentID  *string       `gorm:"type:uuid;index" json:"parentId"`
	Replies   []Comment     `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
	Status    CommentStatus `gorm:"type:varchar(16);not null;default:PENDING;index" json:"status"`
	CreatedAt time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
