package database

import "fmt"

// schemaStatements is the minimal schema the ingestion core depends on. The
// unique indexes on email_message_id are load-bearing: concurrent redelivery
// of the same webhook message must collapse to a single ticket or reply.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'customer_service',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY,
		ticket_number TEXT NOT NULL UNIQUE,
		reservation_number TEXT,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		assigned_to INTEGER REFERENCES users(id),
		created_by INTEGER NOT NULL REFERENCES users(id),
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		priority TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL DEFAULT 'open',
		source TEXT NOT NULL DEFAULT 'manual',
		email_message_id TEXT UNIQUE,
		email_thread_id TEXT,
		resolved_at TIMESTAMP,
		metadata TEXT,
		create_time TIMESTAMP NOT NULL,
		change_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_replies (
		id INTEGER PRIMARY KEY,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id),
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'reply',
		is_customer_visible BOOLEAN NOT NULL DEFAULT TRUE,
		email_message_id TEXT UNIQUE,
		attachments TEXT,
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_number_counters (
		scope TEXT PRIMARY KEY,
		counter INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_thread ON tickets(email_thread_id)`,
	`CREATE INDEX IF NOT EXISTS idx_replies_ticket ON ticket_replies(ticket_id, create_time)`,
}

// EnsureSchema creates the core tables when they do not exist yet. Real
// deployments run migrations; this covers tests and first boot.
func (d *DB) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
