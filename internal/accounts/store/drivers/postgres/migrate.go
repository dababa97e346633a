package postgres

import (
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store/drivers/postgres/migrations"
)

// ApplyMigrations brings the schema up to date from the embedded files.
// golang-migrate holds an advisory lock meanwhile, so replicas starting
// together apply each migration once.
func (s *Store) ApplyMigrations() error {
	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return err
	}
	return store.Migrate(migrations.Migrations, "pgx5", driver)
}
