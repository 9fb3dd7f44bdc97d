// Package seed provides helpers to create demo data for the blog database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account signs in with.
const DefaultPassword = "password123"

// tagVocabulary keeps seeded tags overlapping so tag filters and related
// posts have something to find.
var tagVocabulary = []string{
	"go", "postgres", "redis", "devops", "frontend", "backend", "testing",
	"security", "design", "career", "tutorial", "opinion", "release", "performance",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker

	hashed string
}

// NewFactory creates a Factory bound to db. A zero RandSeed picks a random one.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, fake: gofakeit.New(seed)}
}

func (f *Factory) password() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hashed == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return DefaultPassword
		}
		f.hashed = string(hashed)
	}
	return f.hashed
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.fake.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs a user without persisting it. The email carries a
// numeric suffix so repeated runs stay unique.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.fake.FirstName(), f.fake.LastName()
	image := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID())
	user := &models.User{
		Name:          first + " " + last,
		Email:         strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, last, f.fake.Number(100, 99999))),
		Password:      f.password(),
		Role:          models.RoleUser,
		Status:        models.UserActive,
		Image:         &image,
		EmailVerified: f.fake.Number(0, 9) > 0,
	}
	user.CreatedAt = f.createdAt()
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildPost constructs a post by author with markdown content.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	var body strings.Builder
	fmt.Fprintf(&body, "## %s\n\n", f.fake.Sentence(4))
	for i := 0; i < f.fake.Number(2, 5); i++ {
		body.WriteString(f.fake.Paragraph(1, 4, 12, " "))
		body.WriteString("\n\n")
	}
	if f.fake.Bool() {
		fmt.Fprintf(&body, "- %s\n- %s\n", f.fake.Sentence(5), f.fake.Sentence(5))
	}

	var thumbnail *string
	if f.fake.Number(0, 9) < 6 {
		url := fmt.Sprintf("https://picsum.photos/seed/%s/800/450", f.fake.UUID())
		thumbnail = &url
	}

	post := &models.Post{
		Title:      strings.TrimSuffix(f.fake.Sentence(f.fake.Number(3, 8)), "."),
		Content:    strings.TrimSpace(body.String()),
		Thumbnail:  thumbnail,
		Tags:       pq.StringArray(f.pickTags()),
		IsFeatured: f.fake.Number(0, 9) == 0,
		Status:     f.postStatus(),
		AuthorID:   author.ID,
		Views:      int64(f.fake.Number(0, 2500)),
	}
	post.CreatedAt = f.createdAt()
	post.UpdatedAt = post.CreatedAt
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildComment constructs a comment on post. A non-nil parent makes it a reply.
func (f *Factory) BuildComment(author *models.User, post *models.Post, parent *models.Comment) *models.Comment {
	comment := &models.Comment{
		Content:  f.fake.Sentence(f.fake.Number(6, 24)),
		AuthorID: author.ID,
		PostID:   post.ID,
		Status:   f.commentStatus(),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	comment.CreatedAt = post.CreatedAt.Add(time.Duration(f.fake.Number(1, 72*60)) * time.Minute)
	return comment
}

func (f *Factory) pickTags() []string {
	n := f.fake.Number(1, 4)
	seen := make(map[string]bool, n)
	tags := make([]string, 0, n)
	for len(tags) < n {
		tag := f.fake.RandomString(tagVocabulary)
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// postStatus is mostly PUBLISHED with some drafts and archives.
func (f *Factory) postStatus() models.PostStatus {
	switch n := f.fake.Number(0, 9); {
	case n < 7:
		return models.PostPublished
	case n < 9:
		return models.PostDraft
	default:
		return models.PostArchived
	}
}

func (f *Factory) commentStatus() models.CommentStatus {
	switch n := f.fake.Number(0, 9); {
	case n < 6:
		return models.CommentApproved
	case n < 9:
		return models.CommentPending
	default:
		return models.CommentRejected
	}
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		user.ID = uuid.NewString()
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Name, user.Email)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePostsBatch persists posts in chunks of BatchSize.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = uuid.NewString()
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.CreateInBatches(posts, f.batchSize()).Error
}

// CreateComment builds and persists a comment.
func (f *Factory) CreateComment(author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := f.BuildComment(author, post, parent)
	if f.opts.DryRun {
		comment.ID = uuid.NewString()
		return comment, nil
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

func (f *Factory) batchSize() int {
	if f.opts.BatchSize > 0 {
		return f.opts.BatchSize
	}
	return 100
}
