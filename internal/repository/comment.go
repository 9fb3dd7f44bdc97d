package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*models.Comment, error)
	Update(ctx context.Context, id string, changes map[string]any) (*models.Comment, error)
	Delete(ctx context.Context, id string) error
	PostExists(ctx context.Context, postID string) (bool, error)
}

// commentRepository implements CommentRepository
type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func postSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "title", "author_id")
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"id": comment.ID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	defer observability.TrackQuery("get", "comments")()
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Post", postSummary).
		First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

// ListByAuthor returns the comments written by authorID, newest first.
func (r *commentRepository) ListByAuthor(ctx context.Context, authorID string) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_by_author", "comments")()
	comments := []*models.Comment{}
	if !validID(authorID) {
		return comments, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Post", postSummary).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, id string, changes map[string]any) (*models.Comment, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	defer observability.TrackQuery("update", "comments")()
	if len(changes) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Comment{ID: id}).Updates(changes)
		if res.Error != nil {
			r.log.LogError(ctx, res.Error, "update")
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, models.NewNotFoundError("Comment", id)
		}
		r.log.LogUpdate(ctx, map[string]interface{}{"id": id, "columns": changedColumns(changes)})
	}
	return r.GetByID(ctx, id)
}

// Delete removes the comment and, through the foreign key, its replies.
func (r *commentRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return models.NewNotFoundError("Comment", id)
	}
	defer observability.TrackQuery("delete", "comments")()
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"id": id})
	return nil
}

func (r *commentRepository) PostExists(ctx context.Context, postID string) (bool, error) {
	if !validID(postID) {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Count(&count).Error
	return count > 0, err
}
