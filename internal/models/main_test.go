package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortSnapshot(t *testing.T) {
	items := []MediaItem{
		{ID: "b", UploadedAt: 100},
		{ID: "c", UploadedAt: 300},
		{ID: "a", UploadedAt: 100},
		{ID: "d", UploadedAt: 200},
	}
	SortSnapshot(items)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, ids)
}

func TestCheckOwner(t *testing.T) {
	items := []MediaItem{{ID: "1", OwnerID: "S100"}, {ID: "2", OwnerID: "S100"}}
	assert.NoError(t, CheckOwner("S100", items))

	items = append(items, MediaItem{ID: "3", OwnerID: "S200"})
	err := CheckOwner("S100", items)
	assert.True(t, errors.Is(err, ErrForeignItem), "got %v", err)
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindPhoto.Valid())
	assert.True(t, KindVideo.Valid())
	assert.False(t, Kind("audio").Valid())
}
