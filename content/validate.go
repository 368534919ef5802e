package content

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	maxTitleLen   = 200
	maxNameLen    = 120
	maxCaptionLen = 300
	maxTextLen    = 5000
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	timePattern  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	statePattern = regexp.MustCompile(`^[A-Z]{2}$`)
)

// ValidationError reports per-field input problems. It is returned before any
// network call is made; a request that fails validation changes nothing.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type validator struct {
	fields map[string]string
}

func (v *validator) add(field, msg string) {
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, dup := v.fields[field]; !dup {
		v.fields[field] = msg
	}
}

func (v *validator) err() *ValidationError {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func (v *validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "must not be empty")
	}
}

func (v *validator) maxLen(field, value string, max int) {
	if len(value) > max {
		v.add(field, "too long")
	}
}

func (v *validator) httpURL(field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.add(field, "must be an http(s) URL")
	}
}

// AlbumInput is the admin payload for creating or updating an album.
type AlbumInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	CoverURL     string `json:"cover_url"`
	DisplayOrder int    `json:"display_order"`
	Published    bool   `json:"published"`
}

func (in AlbumInput) Validate() *ValidationError {
	var v validator
	v.require("title", in.Title)
	v.maxLen("title", in.Title, maxTitleLen)
	v.maxLen("description", in.Description, maxTextLen)
	v.httpURL("cover_url", in.CoverURL)
	return v.err()
}

// PhotoInput is the admin payload for creating or updating a photo.
type PhotoInput struct {
	AlbumID      *int64 `json:"album_id"`
	URL          string `json:"url"`
	Caption      string `json:"caption"`
	DisplayOrder int    `json:"display_order"`
	Published    bool   `json:"published"`
}

func (in PhotoInput) Validate() *ValidationError {
	var v validator
	v.require("url", in.URL)
	v.httpURL("url", in.URL)
	v.maxLen("caption", in.Caption, maxCaptionLen)
	return v.err()
}

// VideoInput is the admin payload for creating or updating a video. Kind and
// ExternalID are never supplied by the client; Normalize derives them from
// the URL after validation.
type VideoInput struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	DisplayOrder int    `json:"display_order"`
	Published    bool   `json:"published"`
}

func (in VideoInput) Validate() *ValidationError {
	var v validator
	v.require("title", in.Title)
	v.maxLen("title", in.Title, maxTitleLen)
	v.require("url", in.URL)
	v.httpURL("url", in.URL)
	v.httpURL("thumbnail_url", in.ThumbnailURL)
	if _, dup := v.fields["url"]; !dup && looksLikePlatformURL(in.URL) {
		if _, _, ok := ParseVideoURL(in.URL); !ok {
			v.add("url", "unrecognized video URL")
		}
	}
	return v.err()
}

// Normalize derives the playback kind and external identifier from the URL.
// Call only after Validate passed.
func (in VideoInput) Normalize() (VideoKind, string) {
	if kind, id, ok := ParseVideoURL(in.URL); ok {
		return kind, id
	}
	return KindUpload, ""
}

func looksLikePlatformURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	return host == "youtube.com" || host == "youtu.be" || host == "youtube-nocookie.com" ||
		host == "vimeo.com" || host == "player.vimeo.com"
}

// EventInput is the admin payload for creating or updating an event.
type EventInput struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Venue       string `json:"venue"`
	City        string `json:"city"`
	State       string `json:"state"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
	Featured    bool   `json:"featured"`
}

func (in EventInput) Validate() *ValidationError {
	var v validator
	v.require("title", in.Title)
	v.maxLen("title", in.Title, maxTitleLen)
	v.require("date", in.Date)
	if in.Date != "" {
		if _, err := time.Parse("2006-01-02", in.Date); err != nil {
			v.add("date", "must be YYYY-MM-DD")
		}
	}
	if in.StartTime != "" && !timePattern.MatchString(in.StartTime) {
		v.add("start_time", "must be HH:MM")
	}
	if in.EndTime != "" && !timePattern.MatchString(in.EndTime) {
		v.add("end_time", "must be HH:MM")
	}
	// Zero-padded HH:MM compares correctly as a string.
	if in.StartTime != "" && in.EndTime != "" &&
		timePattern.MatchString(in.StartTime) && timePattern.MatchString(in.EndTime) &&
		in.EndTime <= in.StartTime {
		v.add("end_time", "must be after start_time")
	}
	if in.State != "" && !statePattern.MatchString(in.State) {
		v.add("state", "must be a two-letter uppercase code")
	}
	v.maxLen("venue", in.Venue, maxTitleLen)
	v.maxLen("city", in.City, maxNameLen)
	v.maxLen("description", in.Description, maxTextLen)
	return v.err()
}

// MessageInput is the public contact-form payload.
type MessageInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

func (in MessageInput) Validate() *ValidationError {
	var v validator
	v.require("name", in.Name)
	v.maxLen("name", in.Name, maxNameLen)
	v.require("email", in.Email)
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		v.add("email", "must be a valid address")
	}
	v.maxLen("phone", in.Phone, 40)
	v.require("body", in.Body)
	v.maxLen("body", in.Body, maxTextLen)
	return v.err()
}
