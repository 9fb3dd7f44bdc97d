// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostFilter narrows a post listing. Every set field is AND-combined.
type PostFilter struct {
	Search     string
	Tags       []string
	IsFeatured *bool
	Status     models.PostStatus
	AuthorID   string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error)
	List(ctx context.Context, filter PostFilter, page pagination.Params) ([]*models.Post, int64, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, int64, error)
	ViewWithComments(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, id string, changes map[string]any) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.PostStats, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// sortColumns maps API sort keys onto columns. Anything else sorts by creation time.
var sortColumns = map[string]string{
	"createdAt":    "posts.created_at",
	"updatedAt":    "posts.updated_at",
	"title":        "posts.title",
	"views":        "posts.views",
	"status":       "posts.status",
	"commentCount": "comment_count",
}

const withCommentCount = "posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"id": post.ID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Post", id)
	}
	defer observability.TrackQuery("get", "posts")()
	var post models.Post
	err := r.db.WithContext(ctx).
		Select(withCommentCount).
		Preload("Author").
		First(&post, "posts.id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs loads posts in the order of ids, skipping ids that no longer exist.
func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	defer observability.TrackQuery("get_many", "posts")()
	var found []*models.Post
	err := r.db.WithContext(ctx).
		Select(withCommentCount).
		Preload("Author").
		Where("posts.id IN ?", ids).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]*models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, page pagination.Params) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list", "posts")()

	if filter.AuthorID != "" && !validID(filter.AuthorID) {
		return []*models.Post{}, 0, nil
	}
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := []*models.Post{}
	if total == 0 {
		return posts, 0, nil
	}
	query := r.applyFilter(r.db.WithContext(ctx), filter).
		Select(withCommentCount).
		Preload("Author")
	err := r.applySort(query, page.SortBy, page.SortOrder).
		Limit(page.Limit).
		Offset(page.Skip).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) applyFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		db = db.Where("(posts.title ILIKE ? OR posts.content ILIKE ? OR ? = ANY(posts.tags))", like, like, search)
	}
	if len(f.Tags) > 0 {
		db = db.Where("posts.tags @> ?", pq.StringArray(f.Tags))
	}
	if f.IsFeatured != nil {
		db = db.Where("posts.is_featured = ?", *f.IsFeatured)
	}
	if f.Status != "" {
		db = db.Where("posts.status = ?", f.Status)
	}
	if f.AuthorID != "" {
		db = db.Where("posts.author_id = ?", f.AuthorID)
	}
	return db
}

// applySort orders by an allow-listed column. The id tiebreak keeps pages stable.
func (r *postRepository) applySort(db *gorm.DB, sortBy, sortOrder string) *gorm.DB {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = sortColumns[pagination.DefaultSortBy]
	}
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	return db.Order(fmt.Sprintf("%s %s, posts.id %s", column, direction, direction))
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("list_by_author", "posts")()
	posts := []*models.Post{}
	if !validID(authorID) {
		return posts, 0, nil
	}
	err := r.db.WithContext(ctx).
		Select(withCommentCount).
		Where("posts.author_id = ?", authorID).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, int64(len(posts)), nil
}

// ViewWithComments bumps the view counter and loads the post with its approved
// comment tree in one transaction. Top-level comments are newest first, replies
// oldest first, two reply levels deep.
func (r *postRepository) ViewWithComments(ctx context.Context, id string) (*models.Post, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Post", id)
	}
	defer observability.TrackQuery("view", "posts")()

	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}

		err := tx.
			Preload("Author").
			Preload("Comments", approvedComments("parent_id IS NULL", "DESC")).
			Preload("Comments.Author").
			Preload("Comments.Replies", approvedComments("", "ASC")).
			Preload("Comments.Replies.Author").
			Preload("Comments.Replies.Replies", approvedComments("", "ASC")).
			Preload("Comments.Replies.Replies.Author").
			First(&post, "id = ?", id).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("post_id = ?", id).Count(&post.CommentCount).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func approvedComments(extra, direction string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("comments.status = ?", models.CommentApproved)
		if extra != "" {
			db = db.Where(extra)
		}
		return db.Order("comments.created_at " + direction)
	}
}

// Update applies column changes and returns the fresh row. Views are never
// written here so concurrent reads keep their increments.
func (r *postRepository) Update(ctx context.Context, id string, changes map[string]any) (*models.Post, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Post", id)
	}
	defer observability.TrackQuery("update", "posts")()
	delete(changes, "views")
	if len(changes) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Post{ID: id}).Updates(changes)
		if res.Error != nil {
			r.log.LogError(ctx, res.Error, "update")
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, models.NewNotFoundError("Post", id)
		}
		r.log.LogUpdate(ctx, map[string]interface{}{"id": id, "columns": changedColumns(changes)})
	}
	return r.GetByID(ctx, id)
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return models.NewNotFoundError("Post", id)
	}
	defer observability.TrackQuery("delete", "posts")()
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"id": id})
	return nil
}

type postCounts struct {
	TotalPosts     int64
	PublishedPosts int64
	DraftPosts     int64
	ArchivedPosts  int64
	TotalViews     int64
}

type commentCounts struct {
	TotalComments    int64
	ApprovedComments int64
	RejectedComments int64
	PendingComments  int64
}

type userCounts struct {
	TotalUsers   int64
	AdminUsers   int64
	RegularUsers int64
}

// Stats counts posts, comments and users from one repeatable-read snapshot.
func (r *postRepository) Stats(ctx context.Context) (*models.PostStats, error) {
	defer observability.TrackQuery("stats", "posts")()

	var (
		p postCounts
		c commentCounts
		u userCounts
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`SELECT COUNT(*) AS total_posts,
			COUNT(*) FILTER (WHERE status = ?) AS published_posts,
			COUNT(*) FILTER (WHERE status = ?) AS draft_posts,
			COUNT(*) FILTER (WHERE status = ?) AS archived_posts,
			COALESCE(SUM(views), 0) AS total_views
			FROM posts`, models.PostPublished, models.PostDraft, models.PostArchived).Scan(&p).Error; err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		if err := tx.Raw(`SELECT COUNT(*) AS total_comments,
			COUNT(*) FILTER (WHERE status = ?) AS approved_comments,
			COUNT(*) FILTER (WHERE status = ?) AS rejected_comments,
			COUNT(*) FILTER (WHERE status = ?) AS pending_comments
			FROM comments`, models.CommentApproved, models.CommentRejected, models.CommentPending).Scan(&c).Error; err != nil {
			return fmt.Errorf("count comments: %w", err)
		}
		if err := tx.Raw(`SELECT COUNT(*) AS total_users,
			COUNT(*) FILTER (WHERE role = ?) AS admin_users,
			COUNT(*) FILTER (WHERE role = ?) AS regular_users
			FROM users`, models.RoleAdmin, models.RoleUser).Scan(&u).Error; err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}

	return &models.PostStats{
		TotalPosts:       p.TotalPosts,
		PublishedPosts:   p.PublishedPosts,
		DraftPosts:       p.DraftPosts,
		ArchivedPosts:    p.ArchivedPosts,
		TotalViews:       p.TotalViews,
		TotalComments:    c.TotalComments,
		ApprovedComments: c.ApprovedComments,
		RejectedComments: c.RejectedComments,
		PendingComments:  c.PendingComments,
		TotalUsers:       u.TotalUsers,
		AdminUsers:       u.AdminUsers,
		RegularUsers:     u.RegularUsers,
	}, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
