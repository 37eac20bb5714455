package main

import (
	"fmt"
	"io"
	"time"

	"github.com/atinyakov/ClassFeed/internal/client/dashboard"
	"github.com/atinyakov/ClassFeed/internal/models"
)

// renderWhoami prints the signed-in student.
func renderWhoami(w io.Writer, v dashboard.Snapshot) {
	if !v.SignedIn {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	id := v.Identity
	fmt.Fprintf(w, "%s (%s)\n", id.Name, id.ID)
	fmt.Fprintf(w, "Class %s-%s, roll number %s\n", id.Class, id.Section, id.RollNumber)
	if id.Email != "" {
		fmt.Fprintf(w, "Email: %s\n", id.Email)
	}
	if id.Phone != "" {
		fmt.Fprintf(w, "Phone: %s\n", id.Phone)
	}
	fmt.Fprintf(w, "Role: %s\n", v.Role)
}

// renderFeed prints the filtered feed with its counts and status.
func renderFeed(w io.Writer, v dashboard.Snapshot) {
	if !v.SignedIn {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	f := v.Feed
	fmt.Fprintf(w, "Photos: %d  Videos: %d  Total: %d  (filter: %s)\n", f.Photos, f.Videos, f.Total, f.Filter)
	switch {
	case f.Loading:
		fmt.Fprintln(w, "Loading...")
		return
	case f.Errored:
		fmt.Fprintf(w, "! %s\n", dashboard.Explain(f.Reason))
	}
	if len(f.Items) == 0 {
		fmt.Fprintln(w, "No media yet.")
		return
	}
	for _, it := range f.Items {
		fmt.Fprintf(w, "  [%s] %-12s %s  %s\n", it.Kind, it.ID, formatTime(it.UploadedAt), it.Title)
	}
}

// renderItem prints the expanded view of a selected item.
func renderItem(w io.Writer, it models.MediaItem) {
	fmt.Fprintf(w, "%s\n", it.Title)
	if it.Description != "" {
		fmt.Fprintf(w, "%s\n", it.Description)
	}
	fmt.Fprintf(w, "Type: %s\n", it.Kind)
	fmt.Fprintf(w, "Uploaded: %s\n", formatTime(it.UploadedAt))
	if it.FileName != "" {
		fmt.Fprintf(w, "File: %s\n", it.FileName)
	}
	fmt.Fprintf(w, "URL: %s\n", it.URL)
	if it.ThumbnailURL != "" {
		fmt.Fprintf(w, "Thumbnail: %s\n", it.ThumbnailURL)
	}
}

func formatTime(unixMillis int64) string {
	return time.UnixMilli(unixMillis).UTC().Format("2006-01-02 15:04")
}
