package site

import (
	"context"

	"github.com/GScarabel/djvirtu/content"
)

// Section readers follow one pattern: use the preload snapshot when its
// field has data, otherwise read the store directly, and degrade to the
// empty value when that read fails. fromSnapshot tells the caller whether
// the result is safe to cache for the life of the process.

func (s *Service) sectionSettings(ctx context.Context) (settings content.Settings, fromSnapshot bool) {
	if b, ok := s.snapshots.Snapshot(); ok {
		if m := b.Settings(); len(m) > 0 {
			return m, true
		}
	}
	m, err := s.store.Settings(ctx)
	if err != nil {
		s.logger.Warn("settings read failed, using defaults", "error", err)
		return content.Settings{}, false
	}
	return m, false
}

func (s *Service) sectionPhotos(ctx context.Context) (photos []content.Photo, fromSnapshot bool) {
	if b, ok := s.snapshots.Snapshot(); ok {
		if p := b.Photos(); len(p) > 0 {
			return p, true
		}
	}
	p, err := s.store.PublishedPhotos(ctx, s.cfg.Preload.PhotoLimit)
	if err != nil {
		s.logger.Warn("gallery read failed, rendering empty section", "error", err)
		return nil, false
	}
	return p, false
}

func (s *Service) sectionVideos(ctx context.Context) (videos []content.Video, fromSnapshot bool) {
	if b, ok := s.snapshots.Snapshot(); ok {
		if v := b.Videos(); len(v) > 0 {
			return v, true
		}
	}
	v, err := s.store.PublishedVideos(ctx, s.cfg.Preload.VideoLimit)
	if err != nil {
		s.logger.Warn("videos read failed, rendering empty section", "error", err)
		return nil, false
	}
	return v, false
}

func (s *Service) sectionEvents(ctx context.Context) (events []content.Event, fromSnapshot bool) {
	if b, ok := s.snapshots.Snapshot(); ok {
		if e := b.Events(); len(e) > 0 {
			return e, true
		}
	}
	e, err := s.store.UpcomingEvents(ctx, s.cfg.Preload.EventLimit)
	if err != nil {
		s.logger.Warn("events read failed, rendering empty section", "error", err)
		return nil, false
	}
	return e, false
}
