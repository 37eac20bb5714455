package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// MediaRepository defines the reads FeedService needs from the media collection.
type MediaRepository interface {
	// ListByOwner returns every item of ownerID in snapshot order.
	ListByOwner(ctx context.Context, ownerID string) ([]models.MediaItem, error)
	// ListByOwners returns the items of several owners keyed by owner id.
	ListByOwners(ctx context.Context, ownerIDs []string) (map[string][]models.MediaItem, error)
	// GetByID fetches a single item or returns sql.ErrNoRows.
	GetByID(ctx context.Context, id string) (*models.MediaItem, error)
}

var errNotConfigured = fmt.Errorf("media store not configured: %w", models.ErrBackendUnavailable)

// FeedService builds owner-scoped snapshots of the media collection.
type FeedService struct {
	repo MediaRepository
}

// NewFeedService constructs a FeedService over repo.
func NewFeedService(repo MediaRepository) *FeedService {
	return &FeedService{repo: repo}
}

// Snapshot returns the complete, ordered list of items assigned to ownerID.
// Every row is checked against the owner before it leaves the service.
func (s *FeedService) Snapshot(ctx context.Context, ownerID string) ([]models.MediaItem, error) {
	if ownerID == "" {
		return nil, errors.New("snapshot requires an owner id")
	}
	if s.repo == nil {
		return nil, errNotConfigured
	}
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %v: %w", ownerID, err, models.ErrBackendUnavailable)
	}
	if err := models.CheckOwner(ownerID, items); err != nil {
		return nil, err
	}
	models.SortSnapshot(items)
	return items, nil
}

// Snapshots is the batch form of Snapshot used by periodic refreshes.
func (s *FeedService) Snapshots(ctx context.Context, ownerIDs []string) (map[string][]models.MediaItem, error) {
	if len(ownerIDs) == 0 {
		return map[string][]models.MediaItem{}, nil
	}
	if s.repo == nil {
		return nil, errNotConfigured
	}
	all, err := s.repo.ListByOwners(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %v: %w", err, models.ErrBackendUnavailable)
	}
	for owner, items := range all {
		if err := models.CheckOwner(owner, items); err != nil {
			return nil, err
		}
		models.SortSnapshot(items)
	}
	return all, nil
}

// Item looks up a single item for ownerID. Items of other owners are
// reported as not found.
func (s *FeedService) Item(ctx context.Context, ownerID, id string) (*models.MediaItem, error) {
	if s.repo == nil {
		return nil, errNotConfigured
	}
	item, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item %q: %v: %w", id, err, models.ErrBackendUnavailable)
	}
	if item.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return item, nil
}
