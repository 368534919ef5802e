package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/content"
	"github.com/GScarabel/djvirtu/geo"
	"github.com/GScarabel/djvirtu/session"
)

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		albums, err := s.store.ListAlbums(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": albums})
	case http.MethodPost:
		var in content.AlbumInput
		if !decodeBody(w, r, &in) {
			return
		}
		album, err := s.store.CreateAlbum(r.Context(), in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, album)
	case http.MethodPatch:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if published, ok := queryBool(r, "published"); ok {
			if err := s.store.SetPublished(r.Context(), content.TableAlbums, id, published); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		var in content.AlbumInput
		if !decodeBody(w, r, &in) {
			return
		}
		album, err := s.store.UpdateAlbum(r.Context(), id, in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, album)
	case http.MethodDelete:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteAlbum(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		var albumID *int64
		if raw := strings.TrimSpace(r.URL.Query().Get("album_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid album_id")
				return
			}
			albumID = &id
		}
		photos, err := s.store.ListPhotos(r.Context(), albumID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": photos})
	case http.MethodPost:
		var in content.PhotoInput
		if !decodeBody(w, r, &in) {
			return
		}
		photo, err := s.store.CreatePhoto(r.Context(), in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, photo)
	case http.MethodPatch:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if published, ok := queryBool(r, "published"); ok {
			if err := s.store.SetPublished(r.Context(), content.TablePhotos, id, published); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		var in content.PhotoInput
		if !decodeBody(w, r, &in) {
			return
		}
		photo, err := s.store.UpdatePhoto(r.Context(), id, in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, photo)
	case http.MethodDelete:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeletePhoto(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		videos, err := s.store.ListVideos(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": videos})
	case http.MethodPost:
		var in content.VideoInput
		if !decodeBody(w, r, &in) {
			return
		}
		video, err := s.store.CreateVideo(r.Context(), in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, video)
	case http.MethodPatch:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if published, ok := queryBool(r, "published"); ok {
			if err := s.store.SetPublished(r.Context(), content.TableVideos, id, published); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		var in content.VideoInput
		if !decodeBody(w, r, &in) {
			return
		}
		video, err := s.store.UpdateVideo(r.Context(), id, in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	case http.MethodDelete:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteVideo(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleVideoFeature swaps the featured video in one call. DELETE unsets the
// flag on the given video instead.
func (s *Server) handleVideoFeature(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		if err := s.store.SetVideoFeatured(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "featured"})
	case http.MethodDelete:
		if err := s.store.ClearVideoFeatured(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		events, err := s.store.ListEvents(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": events})
	case http.MethodPost:
		var in content.EventInput
		if !decodeBody(w, r, &in) {
			return
		}
		event, err := s.store.CreateEvent(r.Context(), in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, event)
	case http.MethodPatch:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if published, ok := queryBool(r, "published"); ok {
			if err := s.store.SetPublished(r.Context(), content.TableEvents, id, published); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		var in content.EventInput
		if !decodeBody(w, r, &in) {
			return
		}
		event, err := s.store.UpdateEvent(r.Context(), id, in)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
	case http.MethodDelete:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteEvent(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		messages, err := s.store.ListMessages(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": messages})
	case http.MethodPatch:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		if read, ok := queryBool(r, "read"); ok {
			if err := s.store.MarkMessageRead(r.Context(), id, read); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		if archived, ok := queryBool(r, "archived"); ok {
			if err := s.store.SetMessageArchived(r.Context(), id, archived); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
			return
		}
		writeError(w, http.StatusBadRequest, "read or archived is required")
	case http.MethodDelete:
		ids, err := parseIDList(r.URL.Query().Get("ids"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.DeleteMessages(r.Context(), ids); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "count": len(ids)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.store.Settings(r.Context())
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
	case http.MethodPost, http.MethodPut:
		var payload map[string]string
		if !decodeBody(w, r, &payload) {
			return
		}
		if len(payload) == 0 {
			writeError(w, http.StatusBadRequest, "no settings provided")
			return
		}
		if err := s.store.SaveSettings(r.Context(), payload); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleUploads stores a multipart file in one of the configured buckets and
// returns its public URL.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bucket, ok := s.bucketFromQuery(r.URL.Query().Get("bucket"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bucket must be photos, videos or covers")
		return
	}

	maxBytes := int64(s.cfg.Storage.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	objectPath := backend.ObjectPath(header.Filename)
	url, err := s.storage.Upload(r.Context(), bucket, objectPath, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("upload stored", "bucket", bucket, "path", objectPath, "size", header.Size)
	writeJSON(w, http.StatusCreated, map[string]string{"url": url, "path": objectPath})
}

// handlePreview renders markdown for the admin editor's preview pane.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	rendered, err := s.svc.RenderPreview([]byte(payload.Content))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"html": string(rendered.HTML), "headings": rendered.Headings})
}

func (s *Server) handleGeoStates(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	states, err := s.geo.States(r.Context())
	if err != nil {
		s.logger.Error("states fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "localities service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": states})
}

func (s *Server) handleGeoMunicipalities(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	municipalities, err := s.geo.Municipalities(r.Context(), r.URL.Query().Get("uf"))
	if errors.Is(err, geo.ErrInvalidUF) {
		writeError(w, http.StatusBadRequest, "uf must be a two-letter state code")
		return
	}
	if err != nil {
		s.logger.Error("municipalities fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "localities service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": municipalities})
}

func (s *Server) bucketFromQuery(name string) (string, bool) {
	switch strings.TrimSpace(name) {
	case "photos":
		return s.cfg.Storage.PhotosBucket, true
	case "videos":
		return s.cfg.Storage.VideosBucket, true
	case "covers":
		return s.cfg.Storage.CoversBucket, true
	default:
		return "", false
	}
}

func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("ids is required")
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.New("ids must be a comma-separated list of numbers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
