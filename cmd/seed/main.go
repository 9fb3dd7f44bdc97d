// Command main fills the database with demo users, posts and comments.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	users := flag.Int("users", defaults.Users, "Number of users to create")
	posts := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Maximum comments per post")
	replies := flag.Int("reply-percent", defaults.ReplyPercent, "Chance (0-100) that a comment is a reply")
	clean := flag.Bool("clean", defaults.Clean, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain-text passwords instead of bcrypt hashes")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	randSeed := flag.Int64("seed", 0, "Random seed for repeatable data (0 = random)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	defer func() { _ = database.Close(db) }()

	opts := defaults
	opts.Users = *users
	opts.PostsPerUser = *posts
	opts.CommentsPerPost = *comments
	opts.ReplyPercent = *replies
	opts.Clean = *clean
	opts.SkipBcrypt = *fast
	opts.DryRun = *dryRun
	opts.RandSeed = *randSeed

	summary, err := seed.NewSeeder(db, opts).Run()
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d users, %d posts, %d comments", summary.Users, summary.Posts, summary.Comments)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
