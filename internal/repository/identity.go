// Package repository provides PostgreSQL implementations of the identity
// store and the media collection.
package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// PostgresIdentityRepository looks students up in the students table.
type PostgresIdentityRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresIdentityRepository creates a repository over db.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresIdentityRepository(db *sql.DB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{DB: db}
}

// GetStudentByID returns the one student whose id equals id exactly.
// It returns sql.ErrNoRows when there is none.
func (r *PostgresIdentityRepository) GetStudentByID(ctx context.Context, id string) (*models.Identity, error) {
	var s models.Identity
	err := r.DB.QueryRowContext(ctx, `
		SELECT student_id, secret, name, roll_number, class, section, email, phone, photo_url, created_at
		FROM students WHERE student_id = $1
	`, id).Scan(&s.ID, &s.Secret, &s.Name, &s.RollNumber, &s.Class, &s.Section, &s.Email, &s.Phone, &s.PhotoURL, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
