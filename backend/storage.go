package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GScarabel/djvirtu/config"
)

// Storage uploads and removes binary objects in the hosted object store.
// Objects are addressed as bucket + path; reads happen through public URLs
// served by the store's CDN, never through this client.
type Storage struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	userAgent  string
	configured bool
}

// NewStorage constructs the object-store gateway.
func NewStorage(cfg *config.Config, userAgent string) *Storage {
	return &Storage{
		baseURL:    cfg.Backend.URL,
		serviceKey: cfg.Backend.ServiceKey,
		http:       &http.Client{Timeout: cfg.Backend.Timeout()},
		userAgent:  userAgent,
		configured: cfg.Backend.Configured(),
	}
}

// Configured reports whether uploads will reach a real object store.
func (s *Storage) Configured() bool {
	return s.configured
}

// ObjectPath derives a collision-free object name for an uploaded file,
// keeping the original extension: {unix-timestamp}-{uuid}{.ext}.
func ObjectPath(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%d-%s%s", time.Now().Unix(), uuid.NewString(), ext)
}

// PublicURL returns the CDN-served address of an object.
func (s *Storage) PublicURL(bucket, objectPath string) string {
	return s.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapeObjectPath(objectPath)
}

// Upload stores the reader's bytes under bucket/objectPath and returns the
// object's public URL.
func (s *Storage) Upload(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	if !s.configured {
		return "", ErrNotConfigured
	}
	endpoint := s.baseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeObjectPath(objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", fmt.Errorf("construct upload: %w", err)
	}
	s.setHeaders(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, objectPath, decodeAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return s.PublicURL(bucket, objectPath), nil
}

// Remove deletes the named objects from a bucket. Missing objects are not an
// error; the store treats removal as idempotent.
func (s *Storage) Remove(ctx context.Context, bucket string, objectPaths []string) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if len(objectPaths) == 0 {
		return nil
	}
	payload, err := json.Marshal(struct {
		Prefixes []string `json:"prefixes"`
	}{Prefixes: objectPaths})
	if err != nil {
		return fmt.Errorf("encode remove request: %w", err)
	}

	endpoint := s.baseURL + "/storage/v1/object/" + url.PathEscape(bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("construct remove: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove %s objects: %w", bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("remove %s objects: %w", bucket, decodeAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ObjectPathFromURL extracts the bucket-relative object path from a public
// URL previously produced by this storage, or "" when the URL points
// elsewhere.
func (s *Storage) ObjectPathFromURL(bucket, publicURL string) string {
	prefix := s.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/"
	trimmed, found := strings.CutPrefix(publicURL, prefix)
	if !found || trimmed == "" {
		return ""
	}
	unescaped, err := url.PathUnescape(trimmed)
	if err != nil {
		return trimmed
	}
	return unescaped
}

func (s *Storage) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("User-Agent", s.userAgent)
}

func escapeObjectPath(objectPath string) string {
	segments := strings.Split(strings.Trim(objectPath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
