// Package site assembles and renders the public pages. Section data comes
// from the preload snapshot when one exists and falls back to direct store
// reads otherwise; a failed read renders an empty section, never an error
// page.
package site

import (
	"context"
	"log/slog"

	"github.com/GScarabel/djvirtu/config"
	"github.com/GScarabel/djvirtu/content"
	"github.com/GScarabel/djvirtu/preload"
	"github.com/GScarabel/djvirtu/renderer"
	"github.com/GScarabel/djvirtu/templatex"
)

// StoreReader is the slice of the data-access layer the public site needs.
// *content.Store satisfies it.
type StoreReader interface {
	Configured() bool
	Settings(ctx context.Context) (content.Settings, error)
	PublishedPhotos(ctx context.Context, limit int) ([]content.Photo, error)
	PublishedVideos(ctx context.Context, limit int) ([]content.Video, error)
	UpcomingEvents(ctx context.Context, limit int) ([]content.Event, error)
	InsertMessage(ctx context.Context, in content.MessageInput, clientAddr string) (*content.Message, error)
}

// SnapshotSource hands out the preload bundle once one has been stored.
// *preload.Coordinator satisfies it.
type SnapshotSource interface {
	Snapshot() (*preload.Bundle, bool)
}

// Service orchestrates page assembly, rendering and the contact form.
type Service struct {
	cfg       *config.Config
	store     StoreReader
	snapshots SnapshotSource
	templates *templatex.Engine
	renderer  *renderer.Renderer
	logger    *slog.Logger

	pages *PageCache
}

// NewService constructs a Service instance.
func NewService(cfg *config.Config, store StoreReader, snapshots SnapshotSource, templates *templatex.Engine, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		snapshots: snapshots,
		templates: templates,
		renderer:  renderer.New(),
		logger:    logger,
		pages:     newPageCache(),
	}
}

// Warm exercises the template pipeline once so the first real request does
// not pay for it. It performs no backend reads; the coordinator uses it as
// its readiness hook.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.RenderNotFound(ctx, "/")
	return err
}

// SubmitContact validates and stores a contact-form message. Validation
// failures surface as *content.ValidationError before any network call;
// backend failures pass through untouched so the handler can map them.
func (s *Service) SubmitContact(ctx context.Context, in content.MessageInput, clientAddr string) error {
	_, err := s.store.InsertMessage(ctx, in, clientAddr)
	return err
}

// RenderPreview renders markdown without persisting it, for the admin
// editor's preview pane.
func (s *Service) RenderPreview(src []byte) (*renderer.RenderResult, error) {
	return s.renderer.Render(src)
}

// ThemeDir returns the directory containing template assets, if any.
func (s *Service) ThemeDir() string {
	return s.templates.StaticDir
}
