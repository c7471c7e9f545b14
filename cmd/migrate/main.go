package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/booking-widget/internal/schedule"
	appmigrations "github.com/wolfman30/booking-widget/migrations"
)

const usage = `usage:
  migrate                                   apply all pending migrations
  migrate down                              roll back the last migration
  migrate force <version>                   mark a version as applied
  migrate import-schedules <provider> <file> upsert a schedule seed file`

func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "import-schedules" {
		if len(args) != 3 {
			log.Fatal(usage)
		}
		n, err := importSchedules(context.Background(), databaseURL, args[1], args[2])
		if err != nil {
			log.Fatalf("import schedules: %v", err)
		}
		fmt.Printf("imported %d days for %s\n", n, args[1])
		return
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		log.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case len(args) == 0:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate up: %v", err)
		}
		fmt.Println("migrations complete")
	case args[0] == "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("rolled back one migration")
	case args[0] == "force" && len(args) == 2:
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force version: %v", err)
		}
		fmt.Printf("forced version to %d\n", version)
	default:
		log.Fatal(usage)
	}
}

// importSchedules writes the seed file's days for providerID, or its shared
// days when it has none of its own.
func importSchedules(ctx context.Context, databaseURL, providerID, path string) (int, error) {
	src, err := schedule.LoadFile(path)
	if err != nil {
		return 0, err
	}
	days := src.Days(providerID)
	if len(days) == 0 {
		days = src.Days(schedule.AnyProvider)
	}
	if len(days) == 0 {
		return 0, fmt.Errorf("no schedules for %s in %s", providerID, path)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	repo := schedule.NewRepository(pool)
	for _, day := range days {
		if err := repo.Upsert(ctx, providerID, day); err != nil {
			return 0, err
		}
	}
	return len(days), nil
}
