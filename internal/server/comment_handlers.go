package server

import (
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	PostID   string  `json:"postId"`
	ParentID *string `json:"parentId"`
	Content  string  `json:"content"`
}

type updateCommentRequest struct {
	Content *string               `json:"content"`
	Status  *models.CommentStatus `json:"status"`
}

type moderateCommentRequest struct {
	Status models.CommentStatus `json:"status"`
}

// CreateComment handles POST /comments
// @Summary Comment on a post
// @Description New comments start PENDING unless auto approval is switched on
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createCommentRequest true "Comment"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), actor(c), service.CreateCommentInput{
		PostID:   strings.TrimSpace(req.PostID),
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Comment created successfully", comment)
}

// GetComment handles GET /comments/:id
// @Summary Read a comment
// @Tags comments
// @Produce json
// @Param id path string true "Comment ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [get]
func (s *Server) GetComment(c *fiber.Ctx) error {
	comment, err := s.commentService.GetComment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", comment)
}

// GetCommentsByAuthor handles GET /comments/author/:authorId
// @Summary Comments written by a user
// @Tags comments
// @Produce json
// @Param authorId path string true "Author ID"
// @Success 200 {object} SuccessResponse
// @Router /comments/author/{authorId} [get]
func (s *Server) GetCommentsByAuthor(c *fiber.Ctx) error {
	comments, err := s.commentService.ListByAuthor(c.UserContext(), c.Params("authorId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", comments)
}

// UpdateComment handles PATCH /comments/:id
// @Summary Edit your comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body updateCommentRequest true "Changes"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [patch]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	var req updateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if req.Status != nil {
		status := models.CommentStatus(strings.ToUpper(strings.TrimSpace(string(*req.Status))))
		req.Status = &status
	}
	comment, err := s.commentService.UpdateComment(c.UserContext(), actor(c), c.Params("id"), service.UpdateCommentInput{
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment updated successfully", comment)
}

// DeleteComment handles DELETE /comments/:id
// @Summary Delete a comment and its replies
// @Tags comments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Comment ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	comment, err := s.commentService.DeleteComment(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment deleted successfully", comment)
}

// ModerateComment handles PATCH /comments/:id/moderate
// @Summary Moderate a comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body moderateCommentRequest true "New status"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id}/moderate [patch]
func (s *Server) ModerateComment(c *fiber.Ctx) error {
	var req moderateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	status := models.CommentStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))

	comment, err := s.commentService.ModerateComment(c.UserContext(), actor(c), c.Params("id"), status)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment moderated successfully", comment)
}
