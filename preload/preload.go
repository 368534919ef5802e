// Package preload implements the startup cache coordinator. A single run
// loads the public site's content from the backend, stores it as an
// immutable snapshot, warms the gallery's image cache and reports progress
// to any number of subscribers. The run never fails: every step degrades on
// error and the progress stream always terminates at 100.
package preload

import (
	"context"
	"maps"
	"slices"

	"github.com/GScarabel/djvirtu/content"
)

// Progress is one step of the load sequence. Percent never decreases across
// the stream and the final event is always exactly 100.
type Progress struct {
	Percent int    `json:"percent"`
	Label   string `json:"label"`
}

// DataSource provides the four content reads the coordinator performs.
// *content.Store satisfies it.
type DataSource interface {
	Configured() bool
	Settings(ctx context.Context) (content.Settings, error)
	PublishedPhotos(ctx context.Context, limit int) ([]content.Photo, error)
	PublishedVideos(ctx context.Context, limit int) ([]content.Video, error)
	UpcomingEvents(ctx context.Context, limit int) ([]content.Event, error)
}

// Bundle is the content snapshot taken by one coordinator run. It is
// immutable once stored; accessors hand out copies so no caller can mutate
// the shared state.
type Bundle struct {
	settings content.Settings
	photos   []content.Photo
	videos   []content.Video
	events   []content.Event
}

// NewBundle builds a snapshot from the given content, copying every input.
func NewBundle(settings content.Settings, photos []content.Photo, videos []content.Video, events []content.Event) *Bundle {
	b := &Bundle{
		settings: maps.Clone(settings),
		photos:   slices.Clone(photos),
		videos:   slices.Clone(videos),
		events:   slices.Clone(events),
	}
	b.normalize()
	return b
}

func (b *Bundle) normalize() {
	if b.settings == nil {
		b.settings = content.Settings{}
	}
	if b.photos == nil {
		b.photos = []content.Photo{}
	}
	if b.videos == nil {
		b.videos = []content.Video{}
	}
	if b.events == nil {
		b.events = []content.Event{}
	}
}

func (b *Bundle) Settings() content.Settings { return maps.Clone(b.settings) }
func (b *Bundle) Photos() []content.Photo    { return slices.Clone(b.photos) }
func (b *Bundle) Videos() []content.Video    { return slices.Clone(b.videos) }
func (b *Bundle) Events() []content.Event    { return slices.Clone(b.events) }
