package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table (mirror of identity-provider profiles)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			external_id VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create blocks table (directed edges, unique per ordered pair)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
			id VARCHAR(36) PRIMARY KEY,
			blocker_id VARCHAR(255) NOT NULL,
			blocked_id VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (blocker_id, blocked_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create payment_methods table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_methods (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			method_type VARCHAR(32) NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			account_number VARCHAR(255) NOT NULL,
			iban VARCHAR(64) NOT NULL DEFAULT '',
			bank_name VARCHAR(255) NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create payments table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(36) PRIMARY KEY,
			sender_id VARCHAR(255) NOT NULL,
			receiver_id VARCHAR(255) NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL,
			method_type VARCHAR(32) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			channel_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Create group_roles table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS group_roles (
			id VARCHAR(36) PRIMARY KEY,
			channel_id VARCHAR(255) NOT NULL,
			role_name VARCHAR(64) NOT NULL,
			permissions TEXT[] NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (channel_id, role_name)
		)
	`)
	if err != nil {
		return err
	}

	// Create group_members table (one role per user per channel)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS group_members (
			channel_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			role_name VARCHAR(64) NOT NULL,
			assigned_by VARCHAR(255) NOT NULL,
			assigned_at TIMESTAMP NOT NULL,
			PRIMARY KEY (channel_id, user_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_blocks_blocker ON blocks(blocker_id)",
		"CREATE INDEX IF NOT EXISTS idx_payment_methods_owner ON payment_methods(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_sender ON payments(sender_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_receiver ON payments(receiver_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_receiver_status ON payments(receiver_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_group_roles_channel ON group_roles(channel_id)",
		"CREATE INDEX IF NOT EXISTS idx_group_members_channel ON group_members(channel_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			logrus.Warnf("Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
