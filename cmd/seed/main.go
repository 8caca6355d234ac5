// Command main fills a development database with demo users, posts,
// comments and likes.
package main

import (
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash the shared password with the minimum bcrypt cost")
	dryRun := flag.Bool("dry-run", false, "Build records without writing them")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{SkipBcrypt: *fast, DryRun: *dryRun})
	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)
	if _, err := s.Run(*numUsers, *numPosts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done. Every seeded user has the password %q", seed.DefaultPassword)
}
