package seed

import (
	"errors"
	"fmt"
	"log"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// ReplyPercent is the chance, 0-100, that a comment answers an earlier one.
	ReplyPercent int
	Clean        bool
	SkipBcrypt   bool
	DryRun       bool
	MaxDays      int
	BatchSize    int
	RandSeed     int64
}

// DefaultOptions matches the flags of cmd/seed.
func DefaultOptions() Options {
	return Options{
		Users:           20,
		PostsPerUser:    3,
		CommentsPerPost: 4,
		ReplyPercent:    30,
		Clean:           true,
		MaxDays:         90,
		BatchSize:       100,
	}
}

// Summary reports what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
}

// Seeder populates the database through a Factory.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Run clears existing data when asked, then creates users, their posts and
// threaded comments.
func (s *Seeder) Run() (*Summary, error) {
	if s.opts.Users <= 0 {
		return nil, errors.New("seed: at least one user is required")
	}
	log.Printf("🌱 Seeding %d users, %d posts each, up to %d comments per post",
		s.opts.Users, s.opts.PostsPerUser, s.opts.CommentsPerPost)

	if s.opts.Clean && !s.opts.DryRun {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	users, err := s.SeedUsers(s.opts.Users)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	posts, err := s.SeedPosts(users, s.opts.PostsPerUser)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	comments, err := s.SeedComments(users, posts, s.opts.CommentsPerPost)
	if err != nil {
		return nil, fmt.Errorf("seed comments: %w", err)
	}
	log.Printf("✓ %d comments created", comments)

	log.Println("🎉 Database seeding completed successfully!")
	return &Summary{Users: len(users), Posts: len(posts), Comments: comments}, nil
}

// ClearAll removes every blog row. Postgres gets a single TRUNCATE; other
// dialects delete child tables first.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE comments, posts, users CASCADE`).Error
	}
	for _, table := range []string{"comments", "posts", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedUsers creates n users. The first one is an administrator so the
// moderation endpoints are usable straight away.
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		var overrides []func(*models.User)
		if i == 0 {
			overrides = append(overrides, func(u *models.User) {
				u.Role = models.RoleAdmin
				u.EmailVerified = true
			})
		}
		user, err := s.factory.CreateUser(overrides...)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedPosts creates perUser posts for every user in batches.
func (s *Seeder) SeedPosts(users []*models.User, perUser int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(users)*perUser)
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			posts = append(posts, s.factory.BuildPost(u))
		}
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// SeedComments gives every post up to perPost comments by random users.
// Replies always point at an earlier comment of the same post.
func (s *Seeder) SeedComments(users []*models.User, posts []*models.Post, perPost int) (int, error) {
	if len(users) == 0 || perPost <= 0 {
		return 0, nil
	}
	fake := s.factory.fake
	total := 0
	for _, p := range posts {
		var thread []*models.Comment
		for i := 0; i < fake.Number(0, perPost); i++ {
			author := users[fake.Number(0, len(users)-1)]
			var parent *models.Comment
			if len(thread) > 0 && fake.Number(1, 100) <= s.opts.ReplyPercent {
				parent = thread[fake.Number(0, len(thread)-1)]
			}
			c, err := s.factory.CreateComment(author, p, parent)
			if err != nil {
				return total, err
			}
			thread = append(thread, c)
			total++
		}
	}
	return total, nil
}
