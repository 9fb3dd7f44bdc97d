package server

import (
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Thumbnail  *string           `json:"thumbnail"`
	Tags       []string          `json:"tags"`
	IsFeatured *bool             `json:"isFeatured"`
	Status     models.PostStatus `json:"status"`
}

type updatePostRequest struct {
	Title      *string            `json:"title"`
	Content    *string            `json:"content"`
	Thumbnail  *string            `json:"thumbnail"`
	Tags       *[]string          `json:"tags"`
	IsFeatured *bool              `json:"isFeatured"`
	Status     *models.PostStatus `json:"status"`
}

// GetPosts handles GET /posts
// @Summary List posts
// @Description Filtered, sorted and paginated post listing
// @Tags posts
// @Produce json
// @Param search query string false "Matches title, content or an exact tag"
// @Param tags query string false "Comma separated, all must match"
// @Param isFeatured query bool false "Featured filter"
// @Param status query string false "PUBLISHED, DRAFT or ARCHIVED"
// @Param authorId query string false "Author filter"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Param sortBy query string false "createdAt, updatedAt, title, views, status"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} ListResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	filter := repository.PostFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Tags:       splitTags(c.Query("tags")),
		IsFeatured: optionalBool(c.Query("isFeatured")),
		Status:     models.PostStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		AuthorID:   strings.TrimSpace(c.Query("authorId")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return respondError(c, models.NewFieldValidationError("status", "status must be PUBLISHED, DRAFT or ARCHIVED"))
	}

	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{Filter: filter, Page: pageFromQuery(c)})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ListResponse{Success: true, Data: page.Data, Pagination: &page.Pagination})
}

// GetPostStats handles GET /posts/stats
// @Summary Blog statistics
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{success=bool,message=string,data=models.PostStats}
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/stats [get]
func (s *Server) GetPostStats(c *fiber.Ctx) error {
	stats, err := s.postService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Stats fetched successfully", "data": stats})
}

// SearchPosts handles GET /posts/search?q=
// @Summary Full-text search
// @Tags posts
// @Produce json
// @Param q query string true "Query"
// @Success 200 {object} ListResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ListResponse{Success: true, Data: page.Data, Pagination: &page.Pagination})
}

// CreatePost handles POST /posts
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createPostRequest true "Post"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor(c), service.CreatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		Thumbnail:  req.Thumbnail,
		Tags:       req.Tags,
		IsFeatured: req.IsFeatured,
		Status:     req.Status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Post created successfully", post)
}

// GetMyPosts handles GET /posts/myPost
// @Summary Posts of the caller
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /posts/myPost [get]
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListMyPosts(c.UserContext(), actor(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Posts fetched successfully", posts)
}

// GetPost handles GET /posts/:id
// @Summary Read a post
// @Description Counts a view and returns the post with its approved comment tree
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", post)
}

// GetRelatedPosts handles GET /posts/:id/related
// @Summary Posts sharing tags
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Param limit query int false "Maximum results" default(5)
// @Success 200 {object} SuccessResponse
// @Router /posts/{id}/related [get]
func (s *Server) GetRelatedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.RelatedPosts(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", posts)
}

// UpdatePost handles PATCH /posts/updatePost/:postId
// @Summary Update a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param postId path string true "Post ID"
// @Param request body updatePostRequest true "Changes"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/updatePost/{postId} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor(c), c.Params("postId"), service.UpdatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		Thumbnail:  req.Thumbnail,
		Tags:       req.Tags,
		IsFeatured: req.IsFeatured,
		Status:     req.Status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post updated successfully", post)
}

// DeletePost handles DELETE /posts/delete/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/delete/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	post, err := s.postService.DeletePost(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post deleted successfully", post)
}
