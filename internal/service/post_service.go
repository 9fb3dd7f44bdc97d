package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const defaultRelatedLimit = 5

type PostService struct {
	postRepo repository.PostRepository
	renderer MarkdownRenderer
	indexer  PostIndexer
	events   EventPublisher
	flags    *featureflags.Manager
}

type CreatePostInput struct {
	Title      string
	Content    string
	Thumbnail  *string
	Tags       []string
	IsFeatured *bool
	Status     models.PostStatus
}

type ListPostsInput struct {
	Filter repository.PostFilter
	Page   pagination.Params
}

// UpdatePostInput is a partial update; nil fields are left untouched.
type UpdatePostInput struct {
	Title      *string
	Content    *string
	Thumbnail  *string
	Tags       *[]string
	IsFeatured *bool
	Status     *models.PostStatus
}

// PageInfo describes one page of a listing.
type PageInfo struct {
	TotalData int64 `json:"totalData"`
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	TotalPage int   `json:"totalPage"`
}

// PostPage is a page of posts with its pagination block.
type PostPage struct {
	Data       []*models.Post `json:"data"`
	Pagination PageInfo       `json:"pagination"`
}

// AuthorPosts is every post of one author plus the total.
type AuthorPosts struct {
	Data  []*models.Post `json:"data"`
	Count int64          `json:"count"`
}

// NewPostService wires the post rules. renderer, indexer, events and flags may be nil.
func NewPostService(
	postRepo repository.PostRepository,
	renderer MarkdownRenderer,
	indexer PostIndexer,
	events EventPublisher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		renderer: renderer,
		indexer:  indexer,
		events:   events,
		flags:    flags,
	}
}

// SearchEnabled reports whether full-text search is backed by an index.
func (s *PostService) SearchEnabled() bool {
	return s.indexer != nil
}

func (s *PostService) CreatePost(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewFieldValidationError("title", err.Error())
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewFieldValidationError("content", err.Error())
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewFieldValidationError("tags", err.Error())
	}
	status := in.Status
	if status == "" {
		status = models.PostPublished
	}
	if !status.Valid() {
		return nil, models.NewFieldValidationError("status", "status must be DRAFT, PUBLISHED or ARCHIVED")
	}
	thumbnail, err := normalizeThumbnail(in.Thumbnail)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Thumbnail: thumbnail,
		Tags:      pq.StringArray(tags),
		Status:    status,
		AuthorID:  actor.ID,
	}
	// Only admins feature posts; everyone else is silently ignored.
	if actor.IsAdmin() && in.IsFeatured != nil {
		post.IsFeatured = *in.IsFeatured
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	observability.PostEvents.WithLabelValues("created").Inc()

	s.index(ctx, post)
	publish(ctx, s.events, notifications.Event{
		Type: notifications.PostCreated, ID: post.ID, ActorID: actor.ID, Status: string(post.Status),
	}, "")
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	posts, total, err := s.postRepo.List(ctx, in.Filter, in.Page)
	if err != nil {
		return nil, err
	}
	return newPostPage(posts, total, in.Page), nil
}

func newPostPage(posts []*models.Post, total int64, page pagination.Params) *PostPage {
	return &PostPage{
		Data: posts,
		Pagination: PageInfo{
			TotalData: total,
			Page:      page.Page,
			Limit:     page.Limit,
			TotalPage: pagination.TotalPages(total, page.Limit),
		},
	}
}

// GetPost records a view and returns the post with its approved comment tree.
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "PostService.GetPost")
	defer span.End()
	span.AddAttributes(attribute.String("post.id", id))

	post, err := s.postRepo.ViewWithComments(ctx, id)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.PostViews.Inc()

	if s.renderer != nil {
		html, err := s.renderer.Render(post.Content)
		if err != nil {
			// The raw markdown is still served; only the rendered copy is missing.
			observability.GlobalLogger.WarnContext(ctx, "markdown render failed",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()))
		} else {
			post.ContentHTML = html
		}
	}
	return post, nil
}

func (s *PostService) ListMyPosts(ctx context.Context, authorID string) (*AuthorPosts, error) {
	posts, total, err := s.postRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return &AuthorPosts{Data: posts, Count: total}, nil
}

func (s *PostService) UpdatePost(ctx context.Context, actor Actor, postID string, in UpdatePostInput) (*models.Post, error) {
	existing, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !existing.IsOwnedBy(actor.ID) {
		return nil, models.NewForbiddenError("You are not the owner/creator of the post")
	}

	changes := map[string]any{}
	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, models.NewFieldValidationError("title", err.Error())
		}
		changes["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		if err := validation.ValidatePostContent(*in.Content); err != nil {
			return nil, models.NewFieldValidationError("content", err.Error())
		}
		changes["content"] = *in.Content
	}
	if in.Thumbnail != nil {
		thumbnail, err := normalizeThumbnail(in.Thumbnail)
		if err != nil {
			return nil, err
		}
		changes["thumbnail"] = thumbnail
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, models.NewFieldValidationError("tags", err.Error())
		}
		changes["tags"] = pq.StringArray(tags)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, models.NewFieldValidationError("status", "status must be DRAFT, PUBLISHED or ARCHIVED")
		}
		changes["status"] = *in.Status
	}
	if in.IsFeatured != nil && actor.IsAdmin() {
		changes["is_featured"] = *in.IsFeatured
	}

	if len(changes) == 0 {
		return existing, nil
	}
	post, err := s.postRepo.Update(ctx, postID, changes)
	if err != nil {
		return nil, err
	}
	observability.PostEvents.WithLabelValues("updated").Inc()

	s.index(ctx, post)
	publish(ctx, s.events, notifications.Event{
		Type: notifications.PostUpdated, ID: post.ID, ActorID: actor.ID, Status: string(post.Status),
	}, post.AuthorID)
	return post, nil
}

// DeletePost removes a post and its comments and returns what was deleted.
func (s *PostService) DeletePost(ctx context.Context, actor Actor, postID string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !post.IsOwnedBy(actor.ID) {
		return nil, models.NewForbiddenError("You are not the owner of this post")
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return nil, err
	}
	observability.PostEvents.WithLabelValues("deleted").Inc()

	if s.indexer != nil {
		if err := s.indexer.DeletePost(ctx, postID); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "search delete failed",
				slog.String("post_id", postID),
				slog.String("error", err.Error()))
		}
	}
	publish(ctx, s.events, notifications.Event{
		Type: notifications.PostDeleted, ID: post.ID, ActorID: actor.ID,
	}, post.AuthorID)
	return post, nil
}

func (s *PostService) Stats(ctx context.Context) (*models.PostStats, error) {
	span, ctx := observability.NewSpan(ctx, "PostService.Stats")
	defer span.End()

	stats, err := s.postRepo.Stats(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return stats, nil
}

// SearchPosts runs a relevance search over published posts.
func (s *PostService) SearchPosts(ctx context.Context, query string, page pagination.Params) (*PostPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewFieldValidationError("q", "Search query is required")
	}
	if s.indexer == nil {
		return nil, models.NewUnavailableError("Search is not configured")
	}

	span, ctx := observability.NewSpan(ctx, "PostService.SearchPosts")
	defer span.End()

	ids, total, err := s.indexer.Search(ctx, query, page.Skip, page.Limit)
	if err != nil {
		span.SetError(err)
		return nil, models.NewUnavailableError("Search is temporarily unavailable")
	}
	posts, err := s.postRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return newPostPage(posts, total, page), nil
}

// RelatedPosts finds published posts sharing tags with postID. Without a
// search index the list is empty.
func (s *PostService) RelatedPosts(ctx context.Context, postID string, limit int) ([]*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if s.indexer == nil || len(post.Tags) == 0 {
		return []*models.Post{}, nil
	}
	if limit <= 0 || limit > pagination.MaxLimit {
		limit = defaultRelatedLimit
	}

	ids, err := s.indexer.Related(ctx, post.ID, post.Tags, limit)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "related posts lookup failed",
			slog.String("post_id", postID),
			slog.String("error", err.Error()))
		return []*models.Post{}, nil
	}
	return s.postRepo.GetByIDs(ctx, ids)
}

// index mirrors post into the search index when indexing is switched on for it.
func (s *PostService) index(ctx context.Context, post *models.Post) {
	if s.indexer == nil || !s.flags.Enabled(featureflags.SearchIndex, post.ID) {
		return
	}
	if err := s.indexer.IndexPost(ctx, post); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "search index failed",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()))
	}
}

func normalizeThumbnail(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if err := validation.ValidateImageURL(trimmed); err != nil {
		return nil, models.NewFieldValidationError("thumbnail", "thumbnail "+err.Error())
	}
	return &trimmed, nil
}
