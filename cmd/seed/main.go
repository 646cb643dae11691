package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"attendly/api/routes"
	"attendly/internal/admission"
	"attendly/internal/events"
	"attendly/internal/notifications"
	"attendly/internal/shared/config"
	"attendly/internal/shared/database"
	"attendly/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	db        *database.DB
	router    *routes.Router
	organizer uuid.UUID
}

type eventSeed struct {
	name        string
	venue       string
	startsIn    time.Duration
	capacity    int
	waitlist    bool
	maxWaiting  int
	autoPromote bool
	registrants int
}

func main() {
	fmt.Println("🌱 Starting attendly seeder...")

	_ = godotenv.Load()
	cfg := config.Load()
	if !cfg.UsesPostgres() {
		log.Fatalf("Seeding needs ADMISSION_STORE_DRIVER=postgres, got %q", cfg.Admission.StoreDriver)
	}

	appLogger := logger.NewWithWriter("warn", os.Stdout)

	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	router, err := routes.NewRouter(cfg, db, appLogger, notifications.NoopDispatcher{}, nil)
	if err != nil {
		log.Fatalf("Failed to wire services: %v", err)
	}
	defer router.Close()

	seeder := &Seeder{db: db, router: router, organizer: uuid.New()}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("\n🎉 Seeding completed!")
}

// CleanDatabase truncates attendance before events.
func (s *Seeder) CleanDatabase() error {
	for _, table := range []string{"attendances", "events"} {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := s.db.PostgreSQL.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedAll creates a spread of events and registers attendees through the
// admission engine so the waitlists are built by the real rules.
func (s *Seeder) SeedAll(ctx context.Context) error {
	seeds := []eventSeed{
		{name: "GopherCon Watch Party", venue: "Main Hall", startsIn: 7 * 24 * time.Hour, capacity: 10, waitlist: true, maxWaiting: 5, autoPromote: true, registrants: 18},
		{name: "Distributed Systems Reading Group", venue: "Room 4B", startsIn: 3 * 24 * time.Hour, capacity: 5, waitlist: true, autoPromote: false, registrants: 9},
		{name: "Intro to Postgres Locking", venue: "Room 2A", startsIn: 14 * 24 * time.Hour, capacity: 3, waitlist: false, registrants: 5},
		{name: "Open Office Hours", venue: "Cafeteria", startsIn: 24 * time.Hour, registrants: 4},
	}

	for _, seed := range seeds {
		if err := s.seedEvent(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed %q: %w", seed.name, err)
		}
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}
	return nil
}

func (s *Seeder) seedEvent(ctx context.Context, seed eventSeed) error {
	fmt.Printf("  🎫 Seeding event: %s\n", seed.name)

	created, err := s.router.EventService().CreateEvent(ctx, s.organizer, eventsRequest(seed))
	if err != nil {
		return err
	}
	eventID, err := uuid.Parse(created.ID)
	if err != nil {
		return err
	}

	counts := map[admission.DecisionStatus]int{}
	for i := range seed.registrants {
		decision, err := s.router.AdmissionService().RegisterAttendee(ctx, eventID, admission.Registrant{
			UserID: uuid.New(),
			Email:  fmt.Sprintf("attendee%02d@example.com", i+1),
			Name:   fmt.Sprintf("Attendee %02d", i+1),
		})
		if err != nil {
			return err
		}
		counts[decision.Status]++
	}

	summary, err := s.router.AdmissionService().GetCapacitySummary(ctx, eventID)
	if err != nil {
		return err
	}
	fmt.Printf("    ✅ %s: %d confirmed, %d waitlisted, %d rejected\n",
		eventID, summary.Confirmed, summary.Waitlisted, counts[admission.DecisionRejected])
	return nil
}

func eventsRequest(seed eventSeed) events.CreateEventRequest {
	return events.CreateEventRequest{
		Name:                seed.name,
		Venue:               seed.venue,
		StartsAt:            time.Now().Add(seed.startsIn).Truncate(time.Hour),
		Capacity:            seed.capacity,
		WaitlistEnabled:     seed.waitlist,
		WaitlistMaxSize:     seed.maxWaiting,
		WaitlistAutoPromote: seed.autoPromote,
	}
}
