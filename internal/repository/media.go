package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/ClassFeed/internal/models"
	"github.com/lib/pq"
)

const mediaColumns = `id, type, url, title, description, uploaded_at, thumbnail_url, owner_id, file_name`

// PostgresMediaRepository reads the media collection.
type PostgresMediaRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresMediaRepository creates a repository over db.
func NewPostgresMediaRepository(db *sql.DB) *PostgresMediaRepository {
	return &PostgresMediaRepository{DB: db}
}

// ListByOwner returns every item assigned to ownerID, newest first with ties
// broken by id.
//
//	ctx:     context for cancellation and deadlines
//	ownerID: identifier of the student
func (r *PostgresMediaRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.MediaItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC, id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	defer rows.Close()

	items := []models.MediaItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOwner rows: %w", err)
	}
	return items, nil
}

// GetByID fetches a single item. It returns sql.ErrNoRows when absent.
func (r *PostgresMediaRepository) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByOwners loads the items of several owners in one query, grouped by
// owner and in snapshot order. Owners without items map to an empty slice.
func (r *PostgresMediaRepository) ListByOwners(ctx context.Context, ownerIDs []string) (map[string][]models.MediaItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media
		WHERE owner_id = ANY($1)
		ORDER BY owner_id, uploaded_at DESC, id ASC
	`, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("ListByOwners: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.MediaItem, len(ownerIDs))
	for _, id := range ownerIDs {
		out[id] = []models.MediaItem{}
	}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if _, ok := out[item.OwnerID]; !ok {
			continue
		}
		out[item.OwnerID] = append(out[item.OwnerID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOwners rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (models.MediaItem, error) {
	var it models.MediaItem
	var kind string
	err := s.Scan(&it.ID, &kind, &it.URL, &it.Title, &it.Description, &it.UploadedAt, &it.ThumbnailURL, &it.OwnerID, &it.FileName)
	if err != nil {
		if err == sql.ErrNoRows {
			return it, err
		}
		return it, fmt.Errorf("scan: %w", err)
	}
	it.Kind = models.Kind(kind)
	return it, nil
}
