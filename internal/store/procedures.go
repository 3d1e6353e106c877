package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProceduresStore runs the privileged, cross-cutting SQL that has no home
// in a single collection: idempotent schema patches at startup and the
// current-profile lookup. Nothing here runs on the hot read/write path.
type ProceduresStore struct {
	db *pgxpool.Pool
}

// schemaStatements are applied in order at startup. Each is idempotent:
// create-if-missing tables, add-if-missing columns, and the change-feed
// trigger function replaced in place.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		image TEXT,
		color TEXT,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		product_code TEXT NOT NULL DEFAULT '',
		box_quantity INTEGER NOT NULL DEFAULT 0 CHECK (box_quantity >= 0),
		piece_price DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (piece_price >= 0),
		wholesale_price DOUBLE PRECISION,
		image_url TEXT,
		is_new BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		category_id UUID REFERENCES categories(id) ON DELETE SET NULL
	)`,

	`CREATE TABLE IF NOT EXISTS product_categories (
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (product_id, category_id)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		password_hash BYTEA NOT NULL,
		phone TEXT,
		address TEXT,
		governorate TEXT,
		avatar_url TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT false,
		role TEXT NOT NULL DEFAULT 'customer',
		refresh_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_push_tokens (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expo_push_token TEXT NOT NULL,
		device_info JSONB,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, expo_push_token)
	)`,

	// Columns that arrived after the first deploys; patch in place.
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS wholesale_price DOUBLE PRECISION`,
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`ALTER TABLE categories ADD COLUMN IF NOT EXISTS color TEXT`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS role TEXT NOT NULL DEFAULT 'customer'`,

	// Change feed: every catalog row change is published on one NOTIFY
	// channel, in commit order per table.
	`CREATE OR REPLACE FUNCTION notify_catalog_change() RETURNS trigger AS $fn$
	DECLARE
		payload JSON;
	BEGIN
		IF TG_OP = 'INSERT' THEN
			payload := json_build_object('table', TG_TABLE_NAME, 'type', 'insert',
				'new', row_to_json(NEW));
		ELSIF TG_OP = 'UPDATE' THEN
			payload := json_build_object('table', TG_TABLE_NAME, 'type', 'update',
				'new', row_to_json(NEW), 'old', row_to_json(OLD));
		ELSE
			payload := json_build_object('table', TG_TABLE_NAME, 'type', 'delete',
				'old', row_to_json(OLD));
		END IF;
		PERFORM pg_notify('catalog_changes', payload::text);
		RETURN NULL;
	END;
	$fn$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS products_notify_change ON products`,
	`CREATE TRIGGER products_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON products
		FOR EACH ROW EXECUTE FUNCTION notify_catalog_change()`,

	`DROP TRIGGER IF EXISTS categories_notify_change ON categories`,
	`CREATE TRIGGER categories_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON categories
		FOR EACH ROW EXECUTE FUNCTION notify_catalog_change()`,
}

// EnsureSchema applies the schema patches. Safe to run on every startup.
func (s *ProceduresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema patch failed: %w", err)
		}
	}
	return nil
}

// CurrentProfile is the profile lookup the auth layer depends on for
// role-based gating.
func (s *ProceduresStore) CurrentProfile(ctx context.Context, userID string) (*User, error) {
	users := &UsersStore{s.db}
	return users.GetByID(ctx, userID)
}
