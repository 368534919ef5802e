package preload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GScarabel/djvirtu/config"
	"github.com/GScarabel/djvirtu/content"
)

// fakeSource is a scriptable DataSource that counts calls and can fail or
// stall individual reads.
type fakeSource struct {
	configured bool

	settings content.Settings
	photos   []content.Photo
	videos   []content.Video
	events   []content.Event

	settingsErr error
	photosErr   error

	gate func(read string)

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) called(read string) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[read]++
	f.mu.Unlock()
	if f.gate != nil {
		f.gate(read)
	}
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeSource) Configured() bool { return f.configured }

func (f *fakeSource) Settings(ctx context.Context) (content.Settings, error) {
	f.called("settings")
	return f.settings, f.settingsErr
}

func (f *fakeSource) PublishedPhotos(ctx context.Context, limit int) ([]content.Photo, error) {
	f.called("photos")
	return f.photos, f.photosErr
}

func (f *fakeSource) PublishedVideos(ctx context.Context, limit int) ([]content.Video, error) {
	f.called("videos")
	return f.videos, nil
}

func (f *fakeSource) UpcomingEvents(ctx context.Context, limit int) ([]content.Event, error) {
	f.called("events")
	return f.events, nil
}

// preloadConfig loads a configuration with short preload timings so runs
// finish in milliseconds.
func preloadConfig(t *testing.T) *config.Config {
	t.Helper()
	raw := `{"preload": {"readinessTimeoutMs": 50, "warmTimeoutMs": 500, "settleMs": 5, "warmPhotos": 2, "warmThumbs": 1}}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(ch <-chan Progress) []Progress {
	var out []Progress
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func percents(events []Progress) []int {
	out := make([]int, 0, len(events))
	for _, p := range events {
		out = append(out, p.Percent)
	}
	return out
}

func labels(events []Progress) map[string]bool {
	out := map[string]bool{}
	for _, p := range events {
		out[p.Label] = true
	}
	return out
}

func assertMonotonicTo100(t *testing.T, events []Progress) {
	t.Helper()
	require.NotEmpty(t, events)
	prev := -1
	for _, p := range events {
		assert.GreaterOrEqual(t, p.Percent, prev, "progress must never go backwards")
		assert.LessOrEqual(t, p.Percent, 100)
		prev = p.Percent
	}
	assert.Equal(t, 100, events[len(events)-1].Percent, "stream must terminate at 100")
	assert.Equal(t, "done", events[len(events)-1].Label)
}

func TestRunFullSequence(t *testing.T) {
	source := &fakeSource{
		configured: true,
		settings:   content.Settings{"hero_title": "DJ Virtu"},
		photos:     []content.Photo{{ID: 1}},
		videos:     []content.Video{{ID: 2, Kind: content.KindYouTube, ExternalID: "dQw4w9WgXcQ"}},
		events:     []content.Event{{ID: 3, Date: "2030-01-01"}},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")
	c.WarmClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("no warm in this test")
	})}

	ch := c.Watch(context.Background())
	c.Run(context.Background())
	events := collect(ch)

	assertMonotonicTo100(t, events)
	assert.Equal(t, Progress{Percent: 5, Label: "starting"}, events[0])

	got := labels(events)
	for _, want := range []string{"interface ready", "loading content", "loaded settings", "loaded photos", "loaded videos", "loaded events", "content ready", "finishing", "done"} {
		assert.True(t, got[want], "missing %q event", want)
	}
	assert.Subset(t, percents(events), []int{5, 15, 20, 30, 40, 50, 60, 70, 95, 100})

	bundle, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "DJ Virtu", bundle.Settings()["hero_title"])
	require.Len(t, bundle.Photos(), 1)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after the run")
	}
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRunIsOneShot(t *testing.T) {
	source := &fakeSource{configured: true}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	c.Run(context.Background())
	first := source.callCount()
	c.Run(context.Background())
	assert.Equal(t, first, source.callCount(), "second Run must be a no-op")
	assert.Equal(t, 100, c.Current().Percent)
}

func TestOfflineRun(t *testing.T) {
	source := &fakeSource{configured: false}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	ch := c.Watch(context.Background())
	c.Run(context.Background())
	events := collect(ch)

	assertMonotonicTo100(t, events)
	assert.True(t, labels(events)["offline mode"])
	assert.Zero(t, source.callCount(), "offline mode must not issue reads")
	assert.True(t, c.Offline())

	_, ok := c.Snapshot()
	assert.False(t, ok, "offline runs never store a snapshot")
}

func TestPartialReadFailure(t *testing.T) {
	source := &fakeSource{
		configured:  true,
		settingsErr: errors.New("settings table on fire"),
		photosErr:   errors.New("photos query timed out"),
		videos:      []content.Video{{ID: 1, Title: "Boiler Room"}},
		events:      []content.Event{{ID: 2, Date: "2030-01-01"}},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	ch := c.Watch(context.Background())
	c.Run(context.Background())
	events := collect(ch)

	// Failures degrade, never abort.
	assertMonotonicTo100(t, events)

	bundle, ok := c.Snapshot()
	require.True(t, ok, "partial failure still stores a snapshot")
	assert.Empty(t, bundle.Settings())
	assert.NotNil(t, bundle.Settings(), "empty fields stay usable")
	assert.Empty(t, bundle.Photos())
	require.Len(t, bundle.Videos(), 1)
	require.Len(t, bundle.Events(), 1)
}

func TestReadsRunConcurrently(t *testing.T) {
	var started atomic.Int32
	release := make(chan struct{})
	source := &fakeSource{
		configured: true,
		gate: func(string) {
			started.Add(1)
			<-release
		},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	// All four reads must be in flight at once; none may wait for another.
	require.Eventually(t, func() bool { return started.Load() == 4 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after reads were released")
	}
}

func TestWatchReplayAfterFinish(t *testing.T) {
	source := &fakeSource{configured: true}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")
	c.Run(context.Background())

	// A subscriber arriving after completion sees the whole history.
	events := collect(c.Watch(context.Background()))
	assertMonotonicTo100(t, events)
	assert.Equal(t, 5, events[0].Percent)
}

func TestWatchCancel(t *testing.T) {
	source := &fakeSource{
		configured: true,
		gate: func(read string) {
			if read == "settings" {
				time.Sleep(50 * time.Millisecond)
			}
		},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Watch(ctx)
	cancel()

	go c.Run(context.Background())

	// The channel must close shortly after cancellation even mid-run.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("watch channel did not close after context cancellation")
		}
	}
}

func TestSnapshotImmutable(t *testing.T) {
	source := &fakeSource{
		configured: true,
		settings:   content.Settings{"hero_title": "DJ Virtu"},
		photos:     []content.Photo{{ID: 1, Caption: "original"}},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")
	c.Run(context.Background())

	bundle, ok := c.Snapshot()
	require.True(t, ok)

	// Callers get copies; scribbling on them cannot corrupt the snapshot.
	bundle.Settings()["hero_title"] = "defaced"
	bundle.Photos()[0].Caption = "defaced"

	again, _ := c.Snapshot()
	assert.Equal(t, "DJ Virtu", again.Settings()["hero_title"])
	assert.Equal(t, "original", again.Photos()[0].Caption)
}

func TestSnapshotCellOneShot(t *testing.T) {
	var cell snapshotCell
	_, ok := cell.load()
	assert.False(t, ok)

	first := NewBundle(content.Settings{"k": "first"}, nil, nil, nil)
	second := NewBundle(content.Settings{"k": "second"}, nil, nil, nil)

	assert.True(t, cell.store(first))
	assert.False(t, cell.store(second), "only the first store wins")

	got, ok := cell.load()
	require.True(t, ok)
	assert.Equal(t, "first", got.Settings()["k"])
}

func TestWarmImages(t *testing.T) {
	var warmed atomic.Int32
	var warmedPaths sync.Map
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		warmed.Add(1)
		warmedPaths.Store(r.URL.Path, true)
		fmt.Fprint(w, "image bytes")
	}))
	t.Cleanup(media.Close)

	source := &fakeSource{
		configured: true,
		// Three photos but warmPhotos is 2; only the first two warm.
		photos: []content.Photo{
			{ID: 1, URL: media.URL + "/p1.jpg"},
			{ID: 2, URL: media.URL + "/p2.jpg"},
			{ID: 3, URL: media.URL + "/p3.jpg"},
		},
		// Two videos but warmThumbs is 1.
		videos: []content.Video{
			{ID: 1, ThumbnailURL: media.URL + "/t1.jpg"},
			{ID: 2, ThumbnailURL: media.URL + "/t2.jpg"},
		},
	}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	ch := c.Watch(context.Background())
	c.Run(context.Background())
	events := collect(ch)

	assert.Equal(t, int32(3), warmed.Load(), "2 photos + 1 thumbnail")
	_, p3 := warmedPaths.Load("/p3.jpg")
	assert.False(t, p3, "photos beyond the warm limit stay cold")

	got := labels(events)
	assert.True(t, got["warming images"])
	assert.True(t, got["images ready"])
	assertMonotonicTo100(t, events)
}

func TestWarmSkippedWithoutTargets(t *testing.T) {
	source := &fakeSource{configured: true}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")

	ch := c.Watch(context.Background())
	c.Run(context.Background())
	events := collect(ch)

	got := labels(events)
	assert.False(t, got["warming images"])
	assert.True(t, got["images ready"])
}

func TestRunWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{configured: true}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")
	c.Run(ctx)

	// Cancellation empties the run but the stream still terminates cleanly.
	assert.Equal(t, 100, c.Current().Percent)
	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed even for a cancelled run")
	}
}

func TestReadinessBounded(t *testing.T) {
	source := &fakeSource{configured: true}
	c := New(preloadConfig(t), source, testLogger(), "test-agent")
	c.Readiness = func(ctx context.Context) error {
		<-ctx.Done() // never becomes ready
		return ctx.Err()
	}

	start := time.Now()
	c.Run(context.Background())
	took := time.Since(start)

	assert.Less(t, took, time.Second, "a stuck readiness hook must not stall the run")
	assert.Equal(t, 100, c.Current().Percent)
}

func TestCurrentBeforeStart(t *testing.T) {
	c := New(preloadConfig(t), &fakeSource{}, testLogger(), "test-agent")
	p := c.Current()
	assert.Equal(t, 0, p.Percent)
	assert.Equal(t, "waiting", p.Label)
}
