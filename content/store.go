package content

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/config"
)

const (
	TableAlbums   = "albums"
	TablePhotos   = "photos"
	TableVideos   = "videos"
	TableEvents   = "events"
	TableMessages = "messages"
	TableSettings = "settings"
)

// Store is the typed data-access layer. Every content read and write in the
// application goes through it; it validates inputs before touching the
// network and owns the row-then-blob delete ordering for media.
type Store struct {
	client       *backend.Client
	storage      *backend.Storage
	logger       *slog.Logger
	photosBucket string
	videosBucket string
	coversBucket string
}

// NewStore wires the data-access layer over the backend gateways.
func NewStore(client *backend.Client, storage *backend.Storage, cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		client:       client,
		storage:      storage,
		logger:       logger,
		photosBucket: cfg.Storage.PhotosBucket,
		videosBucket: cfg.Storage.VideosBucket,
		coversBucket: cfg.Storage.CoversBucket,
	}
}

// Configured reports whether reads and writes will reach a real backend.
func (s *Store) Configured() bool {
	return s.client.Configured()
}

func idEq(id int64) []backend.Filter {
	return []backend.Filter{backend.Eq("id", strconv.FormatInt(id, 10))}
}

func one[T any](rows []T) (*T, error) {
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

// --- Public reads -----------------------------------------------------------

// Settings loads the key/value settings table as a flat map.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	var rows []settingRow
	if err := s.client.Select(ctx, backend.Query{Table: TableSettings}, &rows); err != nil {
		return nil, err
	}
	out := make(Settings, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// PublishedPhotos lists published photos in display order.
func (s *Store) PublishedPhotos(ctx context.Context, limit int) ([]Photo, error) {
	var rows []Photo
	err := s.client.Select(ctx, backend.Query{
		Table:   TablePhotos,
		Filters: []backend.Filter{backend.Eq("published", "true")},
		Order:   []backend.Order{{Column: "display_order"}, {Column: "id"}},
		Limit:   limit,
	}, &rows)
	return rows, err
}

// PublishedVideos lists published videos, featured first, then display order.
func (s *Store) PublishedVideos(ctx context.Context, limit int) ([]Video, error) {
	var rows []Video
	err := s.client.Select(ctx, backend.Query{
		Table:   TableVideos,
		Filters: []backend.Filter{backend.Eq("published", "true")},
		Order:   []backend.Order{{Column: "featured", Desc: true}, {Column: "display_order"}, {Column: "id"}},
		Limit:   limit,
	}, &rows)
	return rows, err
}

// UpcomingEvents lists published events in ascending date order. All
// published events are returned; the renderer splits upcoming from past.
func (s *Store) UpcomingEvents(ctx context.Context, limit int) ([]Event, error) {
	var rows []Event
	err := s.client.Select(ctx, backend.Query{
		Table:   TableEvents,
		Filters: []backend.Filter{backend.Eq("published", "true")},
		Order:   []backend.Order{{Column: "date"}, {Column: "start_time"}},
		Limit:   limit,
	}, &rows)
	return rows, err
}

// --- Albums -----------------------------------------------------------------

func (s *Store) ListAlbums(ctx context.Context) ([]Album, error) {
	var rows []Album
	err := s.client.Select(ctx, backend.Query{
		Table: TableAlbums,
		Order: []backend.Order{{Column: "display_order"}, {Column: "id"}},
	}, &rows)
	return rows, err
}

func (s *Store) CreateAlbum(ctx context.Context, in AlbumInput) (*Album, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Album
	if err := s.client.Insert(ctx, TableAlbums, in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) UpdateAlbum(ctx context.Context, id int64, in AlbumInput) (*Album, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Album
	if err := s.client.Update(ctx, TableAlbums, idEq(id), in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// DeleteAlbum removes the album row, then best-effort removes its cover
// object. A failed cover removal leaves an orphaned object and is only
// logged.
func (s *Store) DeleteAlbum(ctx context.Context, id int64) error {
	var rows []Album
	if err := s.client.Select(ctx, backend.Query{Table: TableAlbums, Filters: idEq(id), Limit: 1}, &rows); err != nil {
		return err
	}
	album, err := one(rows)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, TableAlbums, idEq(id)); err != nil {
		return err
	}
	s.removeObject(ctx, s.coversBucket, album.CoverURL)
	return nil
}

// --- Photos -----------------------------------------------------------------

// ListPhotos lists all photos, optionally restricted to one album.
func (s *Store) ListPhotos(ctx context.Context, albumID *int64) ([]Photo, error) {
	q := backend.Query{
		Table: TablePhotos,
		Order: []backend.Order{{Column: "display_order"}, {Column: "id"}},
	}
	if albumID != nil {
		q.Filters = []backend.Filter{backend.Eq("album_id", strconv.FormatInt(*albumID, 10))}
	}
	var rows []Photo
	err := s.client.Select(ctx, q, &rows)
	return rows, err
}

func (s *Store) CreatePhoto(ctx context.Context, in PhotoInput) (*Photo, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Photo
	if err := s.client.Insert(ctx, TablePhotos, in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) UpdatePhoto(ctx context.Context, id int64, in PhotoInput) (*Photo, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Photo
	if err := s.client.Update(ctx, TablePhotos, idEq(id), in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// DeletePhoto removes the photo row, then best-effort removes its storage
// object. The row is the source of truth; an orphaned object is accepted.
func (s *Store) DeletePhoto(ctx context.Context, id int64) error {
	var rows []Photo
	if err := s.client.Select(ctx, backend.Query{Table: TablePhotos, Filters: idEq(id), Limit: 1}, &rows); err != nil {
		return err
	}
	photo, err := one(rows)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, TablePhotos, idEq(id)); err != nil {
		return err
	}
	s.removeObject(ctx, s.photosBucket, photo.URL)
	return nil
}

// --- Videos -----------------------------------------------------------------

func (s *Store) ListVideos(ctx context.Context) ([]Video, error) {
	var rows []Video
	err := s.client.Select(ctx, backend.Query{
		Table: TableVideos,
		Order: []backend.Order{{Column: "display_order"}, {Column: "id"}},
	}, &rows)
	return rows, err
}

func (s *Store) CreateVideo(ctx context.Context, in VideoInput) (*Video, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	kind, externalID := in.Normalize()
	payload := struct {
		VideoInput
		Kind       VideoKind `json:"kind"`
		ExternalID string    `json:"external_id"`
	}{in, kind, externalID}
	var rows []Video
	if err := s.client.Insert(ctx, TableVideos, payload, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) UpdateVideo(ctx context.Context, id int64, in VideoInput) (*Video, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	kind, externalID := in.Normalize()
	payload := struct {
		VideoInput
		Kind       VideoKind `json:"kind"`
		ExternalID string    `json:"external_id"`
	}{in, kind, externalID}
	var rows []Video
	if err := s.client.Update(ctx, TableVideos, idEq(id), payload, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

// DeleteVideo removes the video row; upload-kind videos also get their
// storage object removed best-effort.
func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	var rows []Video
	if err := s.client.Select(ctx, backend.Query{Table: TableVideos, Filters: idEq(id), Limit: 1}, &rows); err != nil {
		return err
	}
	video, err := one(rows)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, TableVideos, idEq(id)); err != nil {
		return err
	}
	if video.Kind == KindUpload {
		s.removeObject(ctx, s.videosBucket, video.URL)
	}
	return nil
}

// SetVideoFeatured makes exactly one video the featured one. The swap runs
// as a single server-side function call, so two admins racing the toggle
// still leave exactly one video featured.
func (s *Store) SetVideoFeatured(ctx context.Context, id int64) error {
	return s.client.RPC(ctx, "set_featured_video", struct {
		VideoID int64 `json:"video_id"`
	}{VideoID: id}, nil)
}

// ClearVideoFeatured unsets the flag on one video.
func (s *Store) ClearVideoFeatured(ctx context.Context, id int64) error {
	return s.client.Update(ctx, TableVideos, idEq(id), struct {
		Featured bool `json:"featured"`
	}{}, nil)
}

// SetPublished flips the published flag on a row of one of the content
// tables.
func (s *Store) SetPublished(ctx context.Context, table string, id int64, published bool) error {
	switch table {
	case TableAlbums, TablePhotos, TableVideos, TableEvents:
	default:
		return fmt.Errorf("set published: unknown table %q", table)
	}
	return s.client.Update(ctx, table, idEq(id), struct {
		Published bool `json:"published"`
	}{Published: published}, nil)
}

// --- Events -----------------------------------------------------------------

func (s *Store) ListEvents(ctx context.Context) ([]Event, error) {
	var rows []Event
	err := s.client.Select(ctx, backend.Query{
		Table: TableEvents,
		Order: []backend.Order{{Column: "date", Desc: true}, {Column: "start_time", Desc: true}},
	}, &rows)
	return rows, err
}

func (s *Store) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Event
	if err := s.client.Insert(ctx, TableEvents, in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) UpdateEvent(ctx context.Context, id int64, in EventInput) (*Event, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	var rows []Event
	if err := s.client.Update(ctx, TableEvents, idEq(id), in, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	return s.client.Delete(ctx, TableEvents, idEq(id))
}

// --- Messages ---------------------------------------------------------------

func (s *Store) ListMessages(ctx context.Context) ([]Message, error) {
	var rows []Message
	err := s.client.Select(ctx, backend.Query{
		Table: TableMessages,
		Order: []backend.Order{{Column: "created_at", Desc: true}},
	}, &rows)
	return rows, err
}

// InsertMessage stores a contact-form submission. Validation failures return
// before any network call.
func (s *Store) InsertMessage(ctx context.Context, in MessageInput, clientAddr string) (*Message, error) {
	if verr := in.Validate(); verr != nil {
		return nil, verr
	}
	payload := struct {
		MessageInput
		ClientAddr string `json:"client_addr"`
	}{in, clientAddr}
	var rows []Message
	if err := s.client.Insert(ctx, TableMessages, payload, &rows); err != nil {
		return nil, err
	}
	return one(rows)
}

func (s *Store) MarkMessageRead(ctx context.Context, id int64, read bool) error {
	return s.client.Update(ctx, TableMessages, idEq(id), struct {
		Read bool `json:"read"`
	}{Read: read}, nil)
}

func (s *Store) SetMessageArchived(ctx context.Context, id int64, archived bool) error {
	return s.client.Update(ctx, TableMessages, idEq(id), struct {
		Archived bool `json:"archived"`
	}{Archived: archived}, nil)
}

// DeleteMessages removes the given messages in one request.
func (s *Store) DeleteMessages(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.Delete(ctx, TableMessages, []backend.Filter{backend.In("id", ids)})
}

// --- Settings ---------------------------------------------------------------

// SaveSettings upserts the given keys. Keys not present in the map are left
// untouched.
func (s *Store) SaveSettings(ctx context.Context, values Settings) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]settingRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, settingRow{Key: k, Value: values[k]})
	}
	return s.client.Upsert(ctx, TableSettings, rows)
}

// removeObject deletes a stored object referenced by a public URL. Failures
// leave an orphan and are logged, never surfaced.
func (s *Store) removeObject(ctx context.Context, bucket, publicURL string) {
	if publicURL == "" || !s.storage.Configured() {
		return
	}
	objectPath := s.storage.ObjectPathFromURL(bucket, publicURL)
	if objectPath == "" {
		return
	}
	if err := s.storage.Remove(ctx, bucket, []string{objectPath}); err != nil {
		s.logger.Warn("orphaned storage object left behind",
			"bucket", bucket, "path", objectPath, "error", err)
	}
}
