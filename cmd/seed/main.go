package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/database"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
)

func main() {
	dbPath := "./data/portal.db"
	if p := os.Getenv("PORTAL_DB_PATH"); p != "" {
		dbPath = p
	}
	if err := os.MkdirAll("./data", 0o755); err != nil {
		log.Fatal("Failed to create data directory:", err)
	}

	db, err := database.Connect(dbPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	// the seeder never issues tokens; any secret will do
	sessions, err := session.NewManager("seed-only", 0)
	if err != nil {
		log.Fatal(err)
	}
	auth := services.NewAuthService(db, sessions)

	users := []struct {
		email, password, name, role string
	}{
		{"admin@example.com", "admin-password", "Portal Admin", models.RoleAdmin},
		{"developer@example.com", "developer-password", "Demo Developer", models.RoleDeveloper},
	}
	for _, u := range users {
		if _, err := auth.CreateUser(u.email, u.password, u.name, u.role); err != nil {
			if errors.Is(err, services.ErrEmailTaken) {
				fmt.Printf("  User %s already exists\n", u.email)
				continue
			}
			log.Fatalf("Failed to create user %s: %v", u.email, err)
		}
		fmt.Printf("✓ Created user: %s (%s)\n", u.email, u.role)
	}

	blocklist := services.NewBlocklistService(db)
	rules := []struct{ cidr, reason string }{
		{"203.0.113.0/24", "documentation range, sample scanner block"},
		{"198.51.100.66", "sample credential stuffing source"},
	}
	for _, r := range rules {
		if _, err := blocklist.Add(r.cidr, r.reason); err != nil {
			log.Fatalf("Failed to add block rule %s: %v", r.cidr, err)
		}
		fmt.Printf("✓ Blocked: %s\n", r.cidr)
	}

	fmt.Println("\n✓ Database seeded successfully!")
}
