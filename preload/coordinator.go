package preload

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GScarabel/djvirtu/config"
	"github.com/GScarabel/djvirtu/content"
)

// watchBuffer comfortably exceeds the longest possible progress history, so
// emitting never blocks on a slow subscriber.
const watchBuffer = 64

// Coordinator runs the startup load sequence exactly once per process and
// fans progress out to subscribers. All methods are safe for concurrent use.
type Coordinator struct {
	// Readiness, when set, is awaited before any content read, bounded by
	// the configured readiness timeout. The run proceeds either way. Set
	// before calling Run.
	Readiness func(ctx context.Context) error

	// WarmClient performs the image warm-up requests. Set before calling
	// Run; New installs a default with the configured warm timeout.
	WarmClient *http.Client

	cfg       *config.Config
	source    DataSource
	logger    *slog.Logger
	userAgent string

	cell snapshotCell
	done chan struct{}

	mu       sync.Mutex
	started  bool
	finished bool
	percent  int
	history  []Progress
	watchers map[int]chan Progress
	nextID   int
}

// New builds a coordinator over the given content source.
func New(cfg *config.Config, source DataSource, logger *slog.Logger, userAgent string) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		source:     source,
		logger:     logger,
		userAgent:  userAgent,
		WarmClient: &http.Client{Timeout: cfg.Preload.WarmTimeout()},
		done:       make(chan struct{}),
		watchers:   map[int]chan Progress{},
	}
}

// Run executes the load sequence. Only the first call does anything; it
// never returns an error. Every step degrades on failure and the progress
// stream terminates at 100 even when the backend is down or ctx is
// cancelled mid-run.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	started := time.Now()
	c.emit(5, "starting")
	c.awaitReadiness(ctx)
	c.emit(15, "interface ready")

	if c.source.Configured() {
		c.emit(20, "loading content")
		bundle := c.fetchAll(ctx)
		c.cell.store(bundle)
		c.emit(70, "content ready")
		c.warmImages(ctx, bundle)
	} else {
		c.logger.Info("backend not configured, running in offline mode")
		c.emit(70, "offline mode")
	}

	c.emit(95, "finishing")
	c.settle(ctx)
	c.finish()
	c.logger.Info("preload finished", "took", time.Since(started).Round(time.Millisecond))
}

// Snapshot returns the stored content bundle without blocking. ok is false
// until the run has stored one; offline runs never store.
func (c *Coordinator) Snapshot() (*Bundle, bool) {
	return c.cell.load()
}

// Done is closed once the run has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Offline reports whether the coordinator runs without a configured backend.
func (c *Coordinator) Offline() bool {
	return !c.source.Configured()
}

// Current returns the most recent progress event, for polling clients.
func (c *Coordinator) Current() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return Progress{Percent: 0, Label: "waiting"}
	}
	return c.history[len(c.history)-1]
}

// Watch subscribes to the progress stream. The returned channel first
// replays everything emitted so far, then delivers live events. It is closed
// after the final 100 event, or early when ctx is cancelled.
func (c *Coordinator) Watch(ctx context.Context) <-chan Progress {
	ch := make(chan Progress, watchBuffer)
	c.mu.Lock()
	for _, p := range c.history {
		ch <- p
	}
	if c.finished {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
			c.mu.Unlock()
		case <-c.done:
		}
	}()
	return ch
}

// emit records a progress event and delivers it to all subscribers. Percent
// is clamped so the stream never goes backwards.
func (c *Coordinator) emit(percent int, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if percent < c.percent {
		percent = c.percent
	}
	c.percent = percent
	p := Progress{Percent: percent, Label: label}
	c.history = append(c.history, p)
	for _, ch := range c.watchers {
		select {
		case ch <- p:
		default:
			// Subscriber stopped draining past the full history; skip it.
		}
	}
}

func (c *Coordinator) finish() {
	c.emit(100, "done")
	c.mu.Lock()
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
	c.finished = true
	c.mu.Unlock()
	close(c.done)
}

func (c *Coordinator) awaitReadiness(ctx context.Context) {
	if c.Readiness == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.Preload.ReadinessTimeout())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.Readiness(rctx) }()
	select {
	case err := <-errc:
		if err != nil {
			c.logger.Warn("readiness hook failed, continuing", "error", err)
		}
	case <-rctx.Done():
		c.logger.Warn("readiness wait timed out, continuing")
	}
}

// fetchAll issues the four content reads concurrently and joins on all of
// them. A failed read logs and contributes its empty value; progress moves
// with the count of finished reads.
func (c *Coordinator) fetchAll(ctx context.Context) *Bundle {
	var (
		b         Bundle
		completed atomic.Int32
		wg        sync.WaitGroup
	)
	report := func(label string) {
		n := int(completed.Add(1))
		c.emit(20+10*n, "loaded "+label)
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		settings, err := c.source.Settings(ctx)
		if err != nil {
			c.logger.Warn("preload read failed", "read", "settings", "error", err)
		}
		b.settings = settings
		report("settings")
	}()
	go func() {
		defer wg.Done()
		photos, err := c.source.PublishedPhotos(ctx, c.cfg.Preload.PhotoLimit)
		if err != nil {
			c.logger.Warn("preload read failed", "read", "photos", "error", err)
		}
		b.photos = photos
		report("photos")
	}()
	go func() {
		defer wg.Done()
		videos, err := c.source.PublishedVideos(ctx, c.cfg.Preload.VideoLimit)
		if err != nil {
			c.logger.Warn("preload read failed", "read", "videos", "error", err)
		}
		b.videos = videos
		report("videos")
	}()
	go func() {
		defer wg.Done()
		events, err := c.source.UpcomingEvents(ctx, c.cfg.Preload.EventLimit)
		if err != nil {
			c.logger.Warn("preload read failed", "read", "events", "error", err)
		}
		b.events = events
		report("events")
	}()
	wg.Wait()
	b.normalize()
	return &b
}

// warmImages pre-fetches a handful of gallery images and video thumbnails so
// the first real page view hits a warm CDN cache. Failures are ignored.
func (c *Coordinator) warmImages(ctx context.Context, b *Bundle) {
	targets := warmTargets(b, c.cfg.Preload.WarmPhotos, c.cfg.Preload.WarmThumbs)
	if len(targets) == 0 {
		c.emit(90, "images ready")
		return
	}
	c.emit(75, "warming images")
	var (
		completed atomic.Int32
		wg        sync.WaitGroup
	)
	wg.Add(len(targets))
	for _, target := range targets {
		target := target
		go func() {
			defer wg.Done()
			c.warmOne(ctx, target)
			n := int(completed.Add(1))
			c.emit(75+15*n/len(targets), "warming images")
		}()
	}
	wg.Wait()
	c.emit(90, "images ready")
}

func warmTargets(b *Bundle, maxPhotos, maxThumbs int) []string {
	var urls []string
	for _, p := range b.photos {
		if len(urls) >= maxPhotos {
			break
		}
		if p.URL != "" {
			urls = append(urls, p.URL)
		}
	}
	thumbs := 0
	for _, v := range b.videos {
		if thumbs >= maxThumbs {
			break
		}
		if t := content.ThumbnailURL(v); t != "" {
			urls = append(urls, t)
			thumbs++
		}
	}
	return urls
}

func (c *Coordinator) warmOne(ctx context.Context, rawURL string) {
	wctx, cancel := context.WithTimeout(ctx, c.cfg.Preload.WarmTimeout())
	defer cancel()
	req, err := http.NewRequestWithContext(wctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.WarmClient.Do(req)
	if err != nil {
		c.logger.Debug("image warm-up failed", "url", rawURL, "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// settle keeps the finished state visible for a beat before reporting 100,
// matching the splash screen's fade timing.
func (c *Coordinator) settle(ctx context.Context) {
	t := time.NewTimer(c.cfg.Preload.Settle())
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
