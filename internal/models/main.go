// Package models defines the core data structures for students, media items
// and client sessions.
package models

import (
	"fmt"
	"sort"
)

// Identity represents an enrolled student (or administrator) with credentials.
type Identity struct {
	// ID is the unique student identifier used to log in.
	ID string `json:"id"`
	// Secret is compared exact-match at login. It is never sent back to clients.
	Secret string `json:"-"`
	// Name is the display name.
	Name string `json:"name"`
	// RollNumber is the ordinal identifier inside the class.
	RollNumber string `json:"rollNumber"`
	// Class and Section form the class group and subgroup.
	Class   string `json:"class"`
	Section string `json:"section"`
	// Optional contact fields.
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
	// CreatedAt is the creation timestamp in unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// Role tags the kind of principal held by a session.
type Role string

const (
	// RoleNone means nobody is logged in.
	RoleNone Role = "none"
	// RoleStudent is a student looking at their own feed.
	RoleStudent Role = "student"
	// RoleAdmin is an administrator.
	RoleAdmin Role = "admin"
)

// Kind is the media type of an item.
type Kind string

const (
	// KindPhoto is a still image.
	KindPhoto Kind = "photo"
	// KindVideo is a video.
	KindVideo Kind = "video"
)

// Valid reports whether k is a known media kind.
func (k Kind) Valid() bool {
	return k == KindPhoto || k == KindVideo
}

// MediaItem is a photo or video assigned to exactly one student.
type MediaItem struct {
	// ID is the unique identifier for the item.
	ID string `json:"id"`
	// Kind is either "photo" or "video".
	Kind Kind `json:"type"`
	// URL locates the content.
	URL   string `json:"url"`
	Title string `json:"title"`
	// Description is optional free text.
	Description string `json:"description,omitempty"`
	// UploadedAt is the upload time in unix milliseconds.
	UploadedAt int64 `json:"uploadedAt"`
	// ThumbnailURL is optional.
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	// OwnerID is the student the item is assigned to. It is the access-control key.
	OwnerID string `json:"studentId"`
	// FileName is the optional original file name.
	FileName string `json:"fileName,omitempty"`
}

// Session is the client-held authentication state.
type Session struct {
	Identity *Identity `json:"identity,omitempty"`
	Role     Role      `json:"role"`
	// Token is the access token issued by the server at login.
	Token string `json:"token,omitempty"`
}

// SnapshotLess orders items newest first, breaking ties by id so that
// identical data always yields the same order.
func SnapshotLess(a, b MediaItem) bool {
	if a.UploadedAt != b.UploadedAt {
		return a.UploadedAt > b.UploadedAt
	}
	return a.ID < b.ID
}

// SortSnapshot sorts items in place in snapshot order.
func SortSnapshot(items []MediaItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return SnapshotLess(items[i], items[j])
	})
}

// CheckOwner returns ErrForeignItem if any item is not owned by ownerID.
func CheckOwner(ownerID string, items []MediaItem) error {
	for _, it := range items {
		if it.OwnerID != ownerID {
			return fmt.Errorf("item %s owned by %q in feed of %q: %w", it.ID, it.OwnerID, ownerID, ErrForeignItem)
		}
	}
	return nil
}
