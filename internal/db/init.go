// Package db opens the PostgreSQL database and installs the schema used by
// the identity store and the media collection.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// ChangeChannel is the NOTIFY channel carrying the owner id of a changed media row.
const ChangeChannel = "media_changed"

const schema = `
CREATE TABLE IF NOT EXISTS students (
    student_id TEXT PRIMARY KEY,
    secret TEXT NOT NULL,
    name TEXT NOT NULL,
    roll_number TEXT NOT NULL DEFAULT '',
    class TEXT NOT NULL DEFAULT '',
    section TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS media (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK (type IN ('photo', 'video')),
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    uploaded_at BIGINT NOT NULL,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL REFERENCES students(student_id) ON DELETE CASCADE,
    file_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS media_owner_uploaded ON media (owner_id, uploaded_at DESC, id);

CREATE OR REPLACE FUNCTION notify_media_changed() RETURNS trigger AS $$
BEGIN
    IF TG_OP = 'DELETE' THEN
        PERFORM pg_notify('media_changed', OLD.owner_id);
        RETURN OLD;
    END IF;
    PERFORM pg_notify('media_changed', NEW.owner_id);
    IF TG_OP = 'UPDATE' AND OLD.owner_id <> NEW.owner_id THEN
        PERFORM pg_notify('media_changed', OLD.owner_id);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS media_changed ON media;
CREATE TRIGGER media_changed AFTER INSERT OR UPDATE OR DELETE ON media
    FOR EACH ROW EXECUTE FUNCTION notify_media_changed();
`

// InitPostgres opens dsn, checks connectivity and installs the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate installs the schema on an already opened database.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
