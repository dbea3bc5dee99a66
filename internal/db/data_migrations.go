package db

import (
	"database/sql"
	"fmt"
	"log"
)

// DataMigration represents a data migration
type DataMigration struct {
	Version     string
	Description string
	Up          func(*sql.DB) error
}

// GetDataMigrations return all data migrations
func GetDataMigrations() []DataMigration {
	return []DataMigration{
		{
			Version:     "data_001",
			Description: "Lower-case address columns written by older tooling",
			Up:          normalizeAddressColumns,
		},
		{
			Version:     "data_002",
			Description: "Zero fill empty amount columns",
			Up:          fillEmptyAmounts,
		},
	}
}

// addressColumns table -> columns holding 0x addresses
var addressColumns = map[string][]string{
	"bridge_transfers":      {"initiator", "asset"},
	"bridge_confirmations":  {"validator"},
	"bridge_asset_routes":   {"asset"},
	"bridge_roles":          {"account", "granted_by"},
	"bridge_token_balances": {"asset", "holder"},
}

var addressTableOrder = []string{
	"bridge_transfers",
	"bridge_confirmations",
	"bridge_asset_routes",
	"bridge_roles",
	"bridge_token_balances",
}

func normalizeAddressColumns(db *sql.DB) error {
	for _, table := range addressTableOrder {
		for _, column := range addressColumns[table] {
			query := fmt.Sprintf(`UPDATE %s SET %s = LOWER(%s) WHERE %s <> LOWER(%s)`,
				table, column, column, column, column)
			result, err := db.Exec(query)
			if err != nil {
				log.Printf("❌ Failed to normalize %s.%s: %v", table, column, err)
				return err
			}
			rows, _ := result.RowsAffected()
			if rows > 0 {
				log.Printf("✅ Normalized %d rows in %s.%s", rows, table, column)
			}
		}
	}
	return nil
}

func fillEmptyAmounts(db *sql.DB) error {
	statements := []string{
		`UPDATE bridge_transfers SET fee = '0' WHERE fee = ''`,
		`UPDATE bridge_asset_routes SET daily_transferred = '0' WHERE daily_transferred = ''`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunDataMigrations applies pending data migrations in order, once each
func RunDataMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations_log (
			id SERIAL PRIMARY KEY,
			version VARCHAR(50) NOT NULL UNIQUE,
			description TEXT,
			executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations_log: %w", err)
	}

	for _, migration := range GetDataMigrations() {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations_log WHERE version = $1",
			migration.Version,
		).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			log.Printf("📋 Data migration %s already applied", migration.Version)
			continue
		}

		log.Printf("🚀 Running data migration: %s", migration.Description)
		if err := migration.Up(db); err != nil {
			return fmt.Errorf("%s: %w", migration.Version, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations_log (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		)
		if err != nil {
			return err
		}
		log.Printf("✅ Data migration %s completed", migration.Version)
	}
	return nil
}
