package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/featureflags"
	"inkwell/internal/mail"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

const noticeExcerptLen = 280

// CommentMailer delivers new-comment notices to post authors.
type CommentMailer interface {
	SendCommentNotice(ctx context.Context, to string, data mail.CommentNoticeData) error
}

type CommentService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	renderer    MarkdownRenderer
	events      EventPublisher
	flags       *featureflags.Manager
	mailer      CommentMailer
	appURL      string
}

type CreateCommentInput struct {
	PostID   string
	ParentID *string
	Content  string
}

// UpdateCommentInput carries an author's edit. Nil fields are left unchanged.
type UpdateCommentInput struct {
	Content *string
	Status  *models.CommentStatus
}

// NewCommentService wires the comment rules. renderer, events and flags may be nil.
func NewCommentService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	renderer MarkdownRenderer,
	events EventPublisher,
	flags *featureflags.Manager,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		renderer:    renderer,
		events:      events,
		flags:       flags,
	}
}

// WithMailer enables new-comment emails linking back to appURL.
func (s *CommentService) WithMailer(m CommentMailer, appURL string) *CommentService {
	s.mailer = m
	s.appURL = strings.TrimRight(appURL, "/")
	return s
}

func (s *CommentService) sanitize(content string) string {
	if s.renderer == nil {
		return strings.TrimSpace(content)
	}
	return s.renderer.PlainText(content)
}

func (s *CommentService) CreateComment(ctx context.Context, actor Actor, in CreateCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(in.PostID) == "" {
		return nil, models.NewFieldValidationError("postId", "postId is required")
	}
	content := s.sanitize(in.Content)
	if err := validation.ValidateCommentContent(content); err != nil {
		return nil, models.NewFieldValidationError("content", err.Error())
	}

	exists, err := s.commentRepo.PostExists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	var parentID *string
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			if models.ErrorCode(err) == models.CodeNotFound {
				return nil, models.NewFieldValidationError("parentId", "Parent comment does not exist")
			}
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewFieldValidationError("parentId", "Parent comment belongs to another post")
		}
		parentID = &parent.ID
	}

	status := models.CommentPending
	if s.flags.Enabled(featureflags.CommentAutoApprove, actor.ID) {
		status = models.CommentApproved
	}

	comment := &models.Comment{
		Content:  content,
		AuthorID: actor.ID,
		PostID:   in.PostID,
		ParentID: parentID,
		Status:   status,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentEvents.WithLabelValues("created", string(status)).Inc()

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	var postAuthor string
	if created.Post != nil {
		postAuthor = created.Post.AuthorID
	}
	publish(ctx, s.events, notifications.Event{
		Type: notifications.CommentCreated, ID: created.ID, PostID: created.PostID, ActorID: actor.ID, Status: string(status),
	}, postAuthor)
	s.mailPostAuthor(ctx, actor, created)
	return created, nil
}

// mailPostAuthor emails the post author about a comment written by someone else.
func (s *CommentService) mailPostAuthor(ctx context.Context, actor Actor, comment *models.Comment) {
	if s.mailer == nil || s.userRepo == nil || comment.Post == nil || comment.Post.AuthorID == actor.ID {
		return
	}
	postAuthor, err := s.userRepo.GetByID(ctx, comment.Post.AuthorID)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "comment notice skipped",
			slog.String("comment_id", comment.ID),
			slog.String("error", err.Error()))
		return
	}
	commenter := "Someone"
	if comment.Author != nil && comment.Author.Name != "" {
		commenter = comment.Author.Name
	}
	excerpt := []rune(comment.Content)
	if len(excerpt) > noticeExcerptLen {
		excerpt = append(excerpt[:noticeExcerptLen], '…')
	}
	err = s.mailer.SendCommentNotice(ctx, postAuthor.Email, mail.CommentNoticeData{
		Name:      postAuthor.Name,
		Commenter: commenter,
		PostTitle: comment.Post.Title,
		Excerpt:   string(excerpt),
		Link:      s.appURL + "/posts/" + comment.PostID,
	})
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "comment notice failed",
			slog.String("comment_id", comment.ID),
			slog.String("error", err.Error()))
	}
}

func (s *CommentService) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, id)
}

// ListByAuthor returns every comment written by authorID, newest first.
func (s *CommentService) ListByAuthor(ctx context.Context, authorID string) ([]*models.Comment, error) {
	return s.commentRepo.ListByAuthor(ctx, authorID)
}

func (s *CommentService) UpdateComment(ctx context.Context, actor Actor, id string, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actor.ID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}
	changes := map[string]any{}
	if in.Content != nil {
		content := s.sanitize(*in.Content)
		if err := validation.ValidateCommentContent(content); err != nil {
			return nil, models.NewFieldValidationError("content", err.Error())
		}
		changes["content"] = content
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, models.NewFieldValidationError("status", "status must be PENDING, APPROVED or REJECT")
		}
		changes["status"] = *in.Status
	}
	if len(changes) == 0 {
		return comment, nil
	}

	updated, err := s.commentRepo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	observability.CommentEvents.WithLabelValues("updated", string(updated.Status)).Inc()
	publish(ctx, s.events, notifications.Event{
		Type: notifications.CommentUpdated, ID: updated.ID, PostID: updated.PostID, ActorID: actor.ID, Status: string(updated.Status),
	}, "")
	return updated, nil
}

// DeleteComment removes a comment and its replies. Authors delete their own
// comments; admins delete any.
func (s *CommentService) DeleteComment(ctx context.Context, actor Actor, id string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("You can only delete your own comments")
	}
	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	observability.CommentEvents.WithLabelValues("deleted", string(comment.Status)).Inc()
	publish(ctx, s.events, notifications.Event{
		Type: notifications.CommentDeleted, ID: comment.ID, PostID: comment.PostID, ActorID: actor.ID,
	}, comment.AuthorID)
	return comment, nil
}

// ModerateComment sets the moderation status. Access is enforced by the route policy.
func (s *CommentService) ModerateComment(ctx context.Context, actor Actor, id string, status models.CommentStatus) (*models.Comment, error) {
	if !status.Valid() {
		return nil, models.NewFieldValidationError("status", "status must be PENDING, APPROVED or REJECT")
	}
	updated, err := s.commentRepo.Update(ctx, id, map[string]any{"status": status})
	if err != nil {
		return nil, err
	}
	observability.CommentEvents.WithLabelValues("moderated", string(status)).Inc()
	publish(ctx, s.events, notifications.Event{
		Type: notifications.CommentModerated, ID: updated.ID, PostID: updated.PostID, ActorID: actor.ID, Status: string(status),
	}, updated.AuthorID)
	return updated, nil
}
