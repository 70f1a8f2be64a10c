package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

var (
	flagDriver string
	flagDBURL  string
	flagDir    string
)

var rootCmd = &cobra.Command{
	Use:   "migration",
	Short: "Apply session journal schema migrations",
	Long: `migration manages the session journal schema for postgres or sqlite.
Connection settings default to DB_DRIVER and DB_URL; migrations are read from
migrations/<driver> unless MIGRATIONS_DIR or --dir points elsewhere.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "database driver, postgres or sqlite (default $DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&flagDBURL, "db-url", "", "database connection url (default $DB_URL)")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "migrations directory (default $MIGRATIONS_DIR)")
}

// flagOrEnv reads env lazily so values loaded from .env in main are honoured.
func flagOrEnv(value, key string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return os.Getenv(key)
}

// newMigrator opens a migrator for the configured driver. Callers must close it.
func newMigrator() (*migrate.Migrate, string, error) {
	driver, err := normalizeDriver(flagOrEnv(flagDriver, "DB_DRIVER"))
	if err != nil {
		return nil, "", err
	}

	databaseURL, err := migrationDatabaseURL(driver, flagOrEnv(flagDBURL, "DB_URL"))
	if err != nil {
		return nil, "", err
	}

	migrationsDir, err := resolveMigrationsDir(flagOrEnv(flagDir, "MIGRATIONS_DIR"), driver)
	if err != nil {
		return nil, "", fmt.Errorf("resolve migrations dir: %w", err)
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsDir)
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create migrator: %w", err)
	}
	return m, sourceURL, nil
}

func normalizeDriver(raw string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(raw))
	switch driver {
	case driverPostgres, driverSQLite:
		return driver, nil
	case "", "memory":
		return "", fmt.Errorf("DB_DRIVER must be %s or %s to run migrations", driverPostgres, driverSQLite)
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", raw)
	}
}

// migrationDatabaseURL converts the service DB_URL into the form the migrate
// drivers expect. sqlite paths and file: uris become sqlite:// urls.
func migrationDatabaseURL(driver, raw string) (string, error) {
	dbURL := strings.TrimSpace(raw)
	if dbURL == "" {
		return "", errors.New("DB_URL is required")
	}

	switch driver {
	case driverSQLite:
		if strings.HasPrefix(dbURL, "sqlite://") {
			return dbURL, nil
		}
		dbURL = strings.TrimPrefix(dbURL, "file:")
		if dbURL == ":memory:" {
			return "", errors.New("in-memory sqlite databases cannot be migrated")
		}
		return "sqlite://" + dbURL, nil
	default:
		return dbURL, nil
	}
}

func resolveMigrationsDir(explicit, driver string) (string, error) {
	candidates := []string{
		strings.TrimSpace(explicit),
		filepath.Join("migrations", driver),
		filepath.Join("/app/migrations", driver),
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		return abs, nil
	}

	return "", fmt.Errorf("migration directory not found (checked --dir, MIGRATIONS_DIR, ./migrations/%s, /app/migrations/%s)", driver, driver)
}

func handleMigrationErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("no migration changes")
		return nil
	}
	return err
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Printf("close migration source: %v", srcErr)
	}
	if dbErr != nil {
		log.Printf("close migration db: %v", dbErr)
	}
}
