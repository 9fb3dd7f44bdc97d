package server

import (
	"net/http"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteRoutes_AreWriteLimited(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	h := newHarness(t, func(c *config.Config) { c.RateLimitWritePerMinute = 1 })

	t.Run("posts", func(t *testing.T) {
		owner, token := h.user("writer", models.RoleUser)
		first := testutil.CreatePost(t, h.db, owner.ID, "first")
		second := testutil.CreatePost(t, h.db, owner.ID, "second")

		status, _ := h.do(http.MethodDelete, "/posts/delete/"+first.ID, nil, token)
		require.Equal(t, http.StatusOK, status)

		status, body := h.do(http.MethodDelete, "/posts/delete/"+second.ID, nil, token)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "RATE_LIMITED", body["code"])

		status, _ = h.do(http.MethodGet, "/posts/"+second.ID, nil, "")
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("comments", func(t *testing.T) {
		author := testutil.CreateUser(t, h.db, "host", models.RoleUser)
		post := testutil.CreatePost(t, h.db, author.ID, "topic")
		commenter, token := h.user("commenter", models.RoleUser)
		now := time.Now().UTC()
		first := testutil.CreateComment(t, h.db, post.ID, commenter.ID, nil, models.CommentApproved, now)
		second := testutil.CreateComment(t, h.db, post.ID, commenter.ID, nil, models.CommentApproved, now.Add(time.Second))

		status, _ := h.do(http.MethodDelete, "/comments/"+first.ID, nil, token)
		require.Equal(t, http.StatusOK, status)

		status, body := h.do(http.MethodDelete, "/comments/"+second.ID, nil, token)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "RATE_LIMITED", body["code"])
	})
}
