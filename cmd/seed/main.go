// Command main fills the database with demo users and access requests.
package main

import (
	"flag"
	"log"

	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/database"
	"github.com/rockymount114/City-Workflow/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of applicants to create")
	numRequests := flag.Int("requests", 100, "Number of access requests to create")
	shouldClean := flag.Bool("clean", false, "Remove workflow data and non-admin users first")
	dryRun := flag.Bool("dry-run", false, "Build everything without writing")
	maxDays := flag.Int("days", 180, "Spread request dates over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed for a reproducible run")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d applicants, %d requests, clean=%v\n", *numUsers, *numRequests, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumRequests: *numRequests,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		MaxDays:     *maxDays,
		EmailDomain: cfg.EmailDomain,
		RandSeed:    *randSeed,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d applications, %d users, %d requests\n", res.Applications, res.Users, res.Requests)
	log.Printf("📧 All seeded users have the password: %s\n", seed.DefaultPassword)
}
