package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GScarabel/djvirtu/fsutil"
	"github.com/GScarabel/djvirtu/templatex"
)

// BuildStatic renders the site into OutputDir as a self-contained export:
// index.html, 404.html and the theme assets. The new output is assembled in
// a temp directory and swapped in atomically; a failed build leaves the old
// output in place.
//
// Exports read the store directly instead of the snapshot so they always
// reflect current backend content, and unlike live rendering a failed read
// fails the build.
func (s *Service) BuildStatic(ctx context.Context) error {
	finalDir := s.cfg.OutputDir
	parent := filepath.Dir(finalDir)
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("ensure output parent: %w", err)
	}

	tempDir, err := os.MkdirTemp(parent, ".__build-")
	if err != nil {
		return fmt.Errorf("create temp output dir: %w", err)
	}
	cleanTemp := true
	defer func() {
		if cleanTemp && tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
	}()

	data, err := s.staticHomeData(ctx)
	if err != nil {
		return err
	}

	home, err := s.renderPage(data)
	if err != nil {
		return fmt.Errorf("render home page: %w", err)
	}
	if err := fsutil.WriteFile(filepath.Join(tempDir, "index.html"), home); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}

	notFound, err := s.RenderNotFound(ctx, "")
	if err != nil {
		return fmt.Errorf("render 404 page: %w", err)
	}
	if err := fsutil.WriteFile(filepath.Join(tempDir, "404.html"), notFound); err != nil {
		return fmt.Errorf("write 404.html: %w", err)
	}

	if s.templates.StaticDir != "" {
		dst := filepath.Join(tempDir, "theme")
		if err := fsutil.CopyTree(s.templates.StaticDir, dst); err != nil {
			return fmt.Errorf("copy theme assets: %w", err)
		}
	}

	backupDir := finalDir + ".old"
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("clean backup dir: %w", err)
	}

	if err := os.Rename(finalDir, backupDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate old output: %w", err)
	}

	if err := os.Rename(tempDir, finalDir); err != nil {
		_ = os.Rename(backupDir, finalDir)
		return fmt.Errorf("activate new output: %w", err)
	}

	_ = os.RemoveAll(backupDir)
	cleanTemp = false
	tempDir = ""
	return nil
}

// staticHomeData fetches current content with direct reads.
func (s *Service) staticHomeData(ctx context.Context) (*templatex.PageData, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	photos, err := s.store.PublishedPhotos(ctx, s.cfg.Preload.PhotoLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch photos: %w", err)
	}
	videos, err := s.store.PublishedVideos(ctx, s.cfg.Preload.VideoLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch videos: %w", err)
	}
	events, err := s.store.UpcomingEvents(ctx, s.cfg.Preload.EventLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	data := s.assembleHome(settings, photos, videos, events)
	data.Live = false
	return data, nil
}
