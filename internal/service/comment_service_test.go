package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"inkwell/internal/featureflags"
	"inkwell/internal/mail"
	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopCommentRepo keeps created comments in memory and knows a single post "p1"
// written by author.
func noopCommentRepo() *commentRepoStub {
	var mu sync.Mutex
	store := map[string]*models.Comment{}
	seq := 0
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			mu.Lock()
			defer mu.Unlock()
			seq++
			c.ID = "c" + strings.Repeat("x", seq)
			cp := *c
			store[c.ID] = &cp
			return nil
		},
		getByIDFn: func(_ context.Context, id string) (*models.Comment, error) {
			mu.Lock()
			defer mu.Unlock()
			c, ok := store[id]
			if !ok {
				return nil, models.NewNotFoundError("Comment", id)
			}
			cp := *c
			cp.Post = &models.PostSummary{ID: c.PostID, Title: "Hello", AuthorID: author.ID}
			cp.Author = &models.UserSummary{ID: c.AuthorID, Name: "Commenter"}
			return &cp, nil
		},
		listByAuthorFn: func(_ context.Context, authorID string) ([]*models.Comment, error) {
			mu.Lock()
			defer mu.Unlock()
			out := []*models.Comment{}
			for _, c := range store {
				if c.AuthorID == authorID {
					cp := *c
					out = append(out, &cp)
				}
			}
			return out, nil
		},
		updateFn: func(_ context.Context, id string, changes map[string]any) (*models.Comment, error) {
			mu.Lock()
			defer mu.Unlock()
			c, ok := store[id]
			if !ok {
				return nil, models.NewNotFoundError("Comment", id)
			}
			if v, ok := changes["content"]; ok {
				c.Content = v.(string)
			}
			if v, ok := changes["status"]; ok {
				c.Status = v.(models.CommentStatus)
			}
			cp := *c
			return &cp, nil
		},
		deleteFn: func(_ context.Context, id string) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := store[id]; !ok {
				return models.NewNotFoundError("Comment", id)
			}
			delete(store, id)
			return nil
		},
		postExistsFn: func(_ context.Context, postID string) (bool, error) { return postID == "p1", nil },
	}
}

type mailerStub struct {
	mu   sync.Mutex
	sent map[string]mail.CommentNoticeData
}

func (m *mailerStub) SendCommentNotice(_ context.Context, to string, data mail.CommentNoticeData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]mail.CommentNoticeData{}
	}
	m.sent[to] = data
	return nil
}

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	svc := NewCommentService(noopCommentRepo(), nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateCommentInput
		code  string
	}{
		{"missing post", CreateCommentInput{Content: "hi"}, models.CodeValidation},
		{"empty content", CreateCommentInput{PostID: "p1", Content: "   "}, models.CodeValidation},
		{"content too long", CreateCommentInput{PostID: "p1", Content: strings.Repeat("x", 10001)}, models.CodeValidation},
		{"unknown post", CreateCommentInput{PostID: "nope", Content: "hi"}, models.CodeNotFound},
		{"unknown parent", CreateCommentInput{PostID: "p1", Content: "hi", ParentID: strPtr("ghost")}, models.CodeValidation},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreateComment(ctx, other, tc.input)
			assertAppError(t, err, tc.code)
		})
	}
}

func TestCommentService_CreateComment_StatusFollowsFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pending := NewCommentService(noopCommentRepo(), nil, nil, nil, featureflags.NewManager("comment_auto_approve=off"))
	c, err := pending.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, models.CommentPending, c.Status)
	assert.Equal(t, other.ID, c.AuthorID)

	approved := NewCommentService(noopCommentRepo(), nil, nil, nil, featureflags.NewManager("comment_auto_approve=on"))
	c, err = approved.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, c.Status)
}

func TestCommentService_CreateComment_Replies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := noopCommentRepo()
	svc := NewCommentService(repo, nil, nil, nil, nil)

	root, err := svc.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "root"})
	require.NoError(t, err)

	reply, err := svc.CreateComment(ctx, author, CreateCommentInput{PostID: "p1", Content: "reply", ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	t.Run("parent on another post", func(t *testing.T) {
		repo.postExistsFn = func(context.Context, string) (bool, error) { return true, nil }
		_, err := svc.CreateComment(ctx, author, CreateCommentInput{PostID: "p2", Content: "x", ParentID: &root.ID})
		assertAppError(t, err, models.CodeValidation)
	})
}

func TestCommentService_CreateComment_NotifiesPostAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	users := newUserRepoStub(&models.User{ID: author.ID, Name: "Ada", Email: "ada@example.com"})
	events := &eventsStub{}
	mailer := &mailerStub{}
	svc := NewCommentService(noopCommentRepo(), users, rendererStub{}, events, nil).
		WithMailer(mailer, "https://blog.example.com/")

	c, err := svc.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "Nice post"})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, notifications.CommentCreated, events.events[0].Type)
	assert.Equal(t, c.ID, events.events[0].ID)
	assert.Len(t, events.users[author.ID], 1)

	notice, ok := mailer.sent["ada@example.com"]
	require.True(t, ok)
	assert.Equal(t, "Hello", notice.PostTitle)
	assert.Equal(t, "Nice post", notice.Excerpt)
	assert.Equal(t, "https://blog.example.com/posts/p1", notice.Link)

	// Commenting on your own post sends nothing.
	_, err = svc.CreateComment(ctx, author, CreateCommentInput{PostID: "p1", Content: "thanks"})
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 1)
	assert.Len(t, events.users[author.ID], 1)
}

func TestCommentService_CreateComment_PublishFailureTolerated(t *testing.T) {
	t.Parallel()
	svc := NewCommentService(noopCommentRepo(), nil, nil, &eventsStub{err: errors.New("redis down")}, nil)

	_, err := svc.CreateComment(context.Background(), other, CreateCommentInput{PostID: "p1", Content: "still saved"})
	require.NoError(t, err)
}

func TestCommentService_UpdateComment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewCommentService(noopCommentRepo(), nil, nil, nil, nil)

	c, err := svc.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "draft"})
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		_, err := svc.UpdateComment(ctx, other, "missing", UpdateCommentInput{Content: strPtr("x")})
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("non author forbidden", func(t *testing.T) {
		_, err := svc.UpdateComment(ctx, admin, c.ID, UpdateCommentInput{Content: strPtr("x")})
		assertAppError(t, err, models.CodeForbidden)
	})

	t.Run("invalid content", func(t *testing.T) {
		_, err := svc.UpdateComment(ctx, other, c.ID, UpdateCommentInput{Content: strPtr("  ")})
		assertAppError(t, err, models.CodeValidation)
	})

	t.Run("invalid status", func(t *testing.T) {
		spam := models.CommentStatus("SPAM")
		_, err := svc.UpdateComment(ctx, other, c.ID, UpdateCommentInput{Content: strPtr("final"), Status: &spam})
		assertAppError(t, err, models.CodeValidation)
	})

	t.Run("status applied", func(t *testing.T) {
		rejected := models.CommentRejected
		updated, err := svc.UpdateComment(ctx, other, c.ID, UpdateCommentInput{Content: strPtr("final"), Status: &rejected})
		require.NoError(t, err)
		assert.Equal(t, "final", updated.Content)
		assert.Equal(t, models.CommentRejected, updated.Status)
	})

	t.Run("no changes", func(t *testing.T) {
		same, err := svc.UpdateComment(ctx, other, c.ID, UpdateCommentInput{})
		require.NoError(t, err)
		assert.Equal(t, "final", same.Content)
	})
}

func TestCommentService_DeleteComment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		code  string
	}{
		{"author", other, ""},
		{"admin", admin, ""},
		{"stranger", author, models.CodeForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := NewCommentService(noopCommentRepo(), nil, nil, nil, nil)
			c, err := svc.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "bye"})
			require.NoError(t, err)

			deleted, err := svc.DeleteComment(ctx, tc.actor, c.ID)
			if tc.code != "" {
				assertAppError(t, err, tc.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.ID, deleted.ID)

			_, err = svc.GetComment(ctx, c.ID)
			assertAppError(t, err, models.CodeNotFound)
		})
	}
}

func TestCommentService_ModerateComment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	events := &eventsStub{}
	svc := NewCommentService(noopCommentRepo(), nil, nil, events, nil)

	c, err := svc.CreateComment(ctx, other, CreateCommentInput{PostID: "p1", Content: "judge me"})
	require.NoError(t, err)

	_, err = svc.ModerateComment(ctx, admin, c.ID, models.CommentStatus("MAYBE"))
	assertAppError(t, err, models.CodeValidation)

	_, err = svc.ModerateComment(ctx, admin, "missing", models.CommentApproved)
	assertAppError(t, err, models.CodeNotFound)

	updated, err := svc.ModerateComment(ctx, admin, c.ID, models.CommentRejected)
	require.NoError(t, err)
	assert.Equal(t, models.CommentRejected, updated.Status)
	require.Len(t, events.users[other.ID], 1)
	assert.Equal(t, notifications.CommentModerated, events.users[other.ID][0].Type)
}

func TestCommentService_ListByAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewCommentService(noopCommentRepo(), nil, nil, nil, nil)

	for _, actor := range []Actor{other, other, author} {
		_, err := svc.CreateComment(ctx, actor, CreateCommentInput{PostID: "p1", Content: "c"})
		require.NoError(t, err)
	}

	mine, err := svc.ListByAuthor(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, c := range mine {
		assert.Equal(t, other.ID, c.AuthorID)
	}
}
