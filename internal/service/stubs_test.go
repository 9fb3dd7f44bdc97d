package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post) error
	getByIDFn      func(context.Context, string) (*models.Post, error)
	getByIDsFn     func(context.Context, []string) ([]*models.Post, error)
	listFn         func(context.Context, repository.PostFilter, pagination.Params) ([]*models.Post, int64, error)
	listByAuthorFn func(context.Context, string) ([]*models.Post, int64, error)
	viewFn         func(context.Context, string) (*models.Post, error)
	updateFn       func(context.Context, string, map[string]any) (*models.Post, error)
	deleteFn       func(context.Context, string) error
	statsFn        func(context.Context) (*models.PostStats, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *postRepoStub) List(ctx context.Context, f repository.PostFilter, p pagination.Params) ([]*models.Post, int64, error) {
	return s.listFn(ctx, f, p)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, int64, error) {
	return s.listByAuthorFn(ctx, authorID)
}
func (s *postRepoStub) ViewWithComments(ctx context.Context, id string) (*models.Post, error) {
	return s.viewFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, id string, changes map[string]any) (*models.Post, error) {
	return s.updateFn(ctx, id, changes)
}
func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Stats(ctx context.Context) (*models.PostStats, error) {
	return s.statsFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { p.ID = "p-new"; return nil },
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) { return &models.Post{ID: id}, nil },
		getByIDsFn: func(_ context.Context, ids []string) ([]*models.Post, error) {
			out := make([]*models.Post, 0, len(ids))
			for _, id := range ids {
				out = append(out, &models.Post{ID: id})
			}
			return out, nil
		},
		listFn: func(context.Context, repository.PostFilter, pagination.Params) ([]*models.Post, int64, error) {
			return []*models.Post{}, 0, nil
		},
		listByAuthorFn: func(context.Context, string) ([]*models.Post, int64, error) { return []*models.Post{}, 0, nil },
		viewFn:         func(_ context.Context, id string) (*models.Post, error) { return &models.Post{ID: id}, nil },
		updateFn: func(_ context.Context, id string, _ map[string]any) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		deleteFn: func(context.Context, string) error { return nil },
		statsFn:  func(context.Context) (*models.PostStats, error) { return &models.PostStats{}, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn       func(context.Context, *models.Comment) error
	getByIDFn      func(context.Context, string) (*models.Comment, error)
	listByAuthorFn func(context.Context, string) ([]*models.Comment, error)
	updateFn       func(context.Context, string, map[string]any) (*models.Comment, error)
	deleteFn       func(context.Context, string) error
	postExistsFn   func(context.Context, string) (bool, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByAuthor(ctx context.Context, authorID string) ([]*models.Comment, error) {
	return s.listByAuthorFn(ctx, authorID)
}
func (s *commentRepoStub) Update(ctx context.Context, id string, changes map[string]any) (*models.Comment, error) {
	return s.updateFn(ctx, id, changes)
}
func (s *commentRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) PostExists(ctx context.Context, postID string) (bool, error) {
	return s.postExistsFn(ctx, postID)
}

// userRepoStub is an in-memory repository.UserRepository.
type userRepoStub struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	s := &userRepoStub{byID: map[string]*models.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
	}
	return s
}

func (s *userRepoStub) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	cp := *u
	return &cp, nil
}

func (s *userRepoStub) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s *userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (s *userRepoStub) GetByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID }), nil
}

func (s *userRepoStub) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == user.Email {
			return models.NewConflictError("User already exists")
		}
	}
	s.nextID++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", s.nextID)
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.UserActive
	}
	cp := *user
	s.byID[user.ID] = &cp
	return nil
}

func (s *userRepoStub) Update(_ context.Context, id string, changes map[string]any) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	for k, v := range changes {
		switch k {
		case "role":
			u.Role = v.(models.Role)
		case "status":
			u.Status = v.(models.UserStatus)
		case "email_verified":
			u.EmailVerified = v.(bool)
		case "google_id":
			u.GoogleID = v.(*string)
		case "image":
			u.Image = v.(*string)
		case "password":
			u.Password = v.(string)
		}
	}
	cp := *u
	return &cp, nil
}

func (s *userRepoStub) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.byID {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

// indexerStub records index calls and answers queries with fixed ids.
type indexerStub struct {
	mu        sync.Mutex
	indexed   []string
	deleted   []string
	searchIDs []string
	total     int64
	err       error
}

func (s *indexerStub) IndexPost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, post.ID)
	return s.err
}
func (s *indexerStub) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return s.err
}
func (s *indexerStub) Search(context.Context, string, int, int) ([]string, int64, error) {
	return s.searchIDs, s.total, s.err
}
func (s *indexerStub) Related(context.Context, string, []string, int) ([]string, error) {
	return s.searchIDs, s.err
}

// eventsStub collects published events.
type eventsStub struct {
	mu     sync.Mutex
	events []notifications.Event
	users  map[string][]notifications.Event
	err    error
}

func (s *eventsStub) Publish(_ context.Context, ev notifications.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}
func (s *eventsStub) PublishUser(_ context.Context, userID string, ev notifications.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = map[string][]notifications.Event{}
	}
	s.users[userID] = append(s.users[userID], ev)
	return s.err
}

// rendererStub wraps content in a paragraph.
type rendererStub struct{ err error }

func (r rendererStub) Render(source string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "<p>" + source + "</p>", nil
}
func (rendererStub) PlainText(s string) string { return s }

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
