package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Alijeyrad/medvault_backend/config"
)

// maintenanceDB is where CREATE DATABASE is issued from.
const maintenanceDB = "postgres"

// Targets lists the databases the service needs: the record store and the
// casbin policy store. Duplicates and blanks are dropped.
func Targets(cfg *config.Config) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range []string{cfg.Database.DBName, cfg.CasbinDatabase.DBName} {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// EnsureDatabases creates every missing target database and returns the
// names it created.
func EnsureDatabases(ctx context.Context, cfg *config.Config) ([]string, error) {
	names := Targets(cfg)
	if len(names) == 0 {
		return nil, fmt.Errorf("database: no database names configured")
	}

	admin, err := Connect(ctx, FromCentralConfig(cfg.Database).WithDB(maintenanceDB))
	if err != nil {
		return nil, err
	}
	defer admin.Close()

	var created []string
	for _, name := range names {
		ok, err := createIfMissing(ctx, admin, name)
		if err != nil {
			return created, fmt.Errorf("database: create %q: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

func createIfMissing(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil || exists {
		return false, err
	}
	// CREATE DATABASE does not take bind parameters.
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, err
	}
	return true, nil
}
