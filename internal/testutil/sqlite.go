// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteSchema mirrors the postgres migrations closely enough for repository
// tests. Tags are stored in their text[] literal form.
var sqliteSchema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'USER',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		phone TEXT,
		image TEXT,
		email_verified BOOLEAN NOT NULL DEFAULT false,
		google_id TEXT UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		thumbnail TEXT,
		tags TEXT NOT NULL DEFAULT '{}',
		is_featured BOOLEAN NOT NULL DEFAULT false,
		status TEXT NOT NULL DEFAULT 'PUBLISHED',
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		views INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE comments (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		parent_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at DATETIME,
		updated_at DATETIME
	)`,
}

// NewSQLiteDB opens an isolated in-memory database with the blog schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// One connection keeps every statement on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// CreateUser inserts a verified, active user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Name:          name,
		Email:         fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Password:      "x",
		Role:          role,
		Status:        models.UserActive,
		EmailVerified: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreatePost inserts a published post owned by authorID.
func CreatePost(t *testing.T, db *gorm.DB, authorID, title string, tags ...string) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:    title,
		Content:  "content of " + title,
		Tags:     pq.StringArray(tags),
		Status:   models.PostPublished,
		AuthorID: authorID,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// CreateComment inserts a comment; parentID may be nil for top-level comments.
func CreateComment(t *testing.T, db *gorm.DB, postID, authorID string, parentID *string, status models.CommentStatus, createdAt time.Time) *models.Comment {
	t.Helper()
	comment := &models.Comment{
		Content:   "comment at " + createdAt.Format(time.RFC3339Nano),
		AuthorID:  authorID,
		PostID:    postID,
		ParentID:  parentID,
		Status:    status,
		CreatedAt: createdAt,
	}
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return comment
}
