package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/scrim-scheduler/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

const (
	dbPingTimeout        = 5 * time.Second
	maxTracedQueryLength = 512
)

func init() {
	// modernc registers itself as "sqlite"; make sure sqlx rebinds to "?".
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// openDB opens the session journal database with query tracing. The caller
// owns the returned handle.
func openDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var system string
	switch driver {
	case config.DriverPostgres:
		system = "postgresql"
	case config.DriverSQLite:
		system = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := otelsqlx.Open(driver, dsn,
		otelsql.WithDBName(dbNameFromURL(dsn)),
		otelsql.WithAttributes(attribute.String("db.system", system)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == config.DriverSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent appends.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	return db, nil
}

// formatDBQueryForTrace collapses whitespace and caps the statement recorded on
// db spans.
func formatDBQueryForTrace(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}
	return normalized[:maxTracedQueryLength] + "..."
}
