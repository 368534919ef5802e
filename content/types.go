// Package content defines the site's data model and the typed data-access
// layer over the hosted backend. All reads and writes against content tables
// go through Store; handlers and renderers never touch backend.Client
// directly.
package content

import "time"

// VideoKind distinguishes how a video row is played back.
type VideoKind string

const (
	KindUpload  VideoKind = "upload"
	KindYouTube VideoKind = "youtube"
	KindVimeo   VideoKind = "vimeo"
)

// Album groups photos in the gallery.
type Album struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CoverURL     string    `json:"cover_url"`
	DisplayOrder int       `json:"display_order"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
}

// Photo is a single gallery image. AlbumID is nil for loose photos outside
// any album.
type Photo struct {
	ID           int64     `json:"id"`
	AlbumID      *int64    `json:"album_id"`
	URL          string    `json:"url"`
	Caption      string    `json:"caption"`
	DisplayOrder int       `json:"display_order"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
}

// Video is an embedded or uploaded video. ExternalID carries the platform's
// video identifier for youtube/vimeo kinds and is empty for uploads.
type Video struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Kind         VideoKind `json:"kind"`
	ExternalID   string    `json:"external_id"`
	DisplayOrder int       `json:"display_order"`
	Featured     bool      `json:"featured"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event is a show or appearance. Date is a calendar day in YYYY-MM-DD form;
// StartTime and EndTime are optional HH:MM strings in the venue's local time.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Venue       string    `json:"venue"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is a contact-form submission.
type Message struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Body       string    `json:"body"`
	ClientAddr string    `json:"client_addr"`
	Read       bool      `json:"read"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
}

// Settings is the site's key/value configuration as stored in the settings
// table, flattened to a map. Missing keys read as the empty string.
type Settings map[string]string

// Get returns the value for key, or fallback when the key is absent or empty.
func (s Settings) Get(key, fallback string) string {
	if s == nil {
		return fallback
	}
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return fallback
}

// settingRow is the wire shape of one settings table row.
type settingRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EventDate parses the event's calendar day. The zero time is returned for
// malformed dates so callers can sort them last without branching.
func (e Event) EventDate() time.Time {
	t, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Upcoming reports whether the event's day is today or later.
func (e Event) Upcoming(now time.Time) bool {
	d := e.EventDate()
	if d.IsZero() {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(today)
}
