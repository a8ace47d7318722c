// Package download streams mod archives to disk with progress reporting,
// manual redirect handling and cooperative cancellation.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/samhoang/modhub/internal/archive"
	errs "github.com/samhoang/modhub/internal/errors"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/metrics"
)

const (
	DefaultProgressInterval = 200 * time.Millisecond
	DefaultGracePeriod      = 5 * time.Second
	DefaultMaxRedirects     = 10
	defaultExt              = ".zip"
)

// CancelResult reports the outcome of a cancel request
type CancelResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type activeDownload struct {
	id        string
	cancelled bool
	filePath  string
	file      *os.File
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager tracks in-flight downloads by install id
type Manager struct {
	client  *http.Client
	emitter events.Emitter
	logger  *log.Logger
	metrics metrics.Metrics

	progressInterval time.Duration
	gracePeriod      time.Duration
	maxRedirects     int

	mu     sync.Mutex
	active map[string]*activeDownload

	// test hook, runs just before the result is resolved
	beforeResolve func(id string)
}

// Option configures a Manager
type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		cp := *c
		m.client = &cp
	}
}

func WithEmitter(e events.Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(mt metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithProgressInterval(d time.Duration) Option {
	return func(m *Manager) { m.progressInterval = d }
}

func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.gracePeriod = d }
}

func WithMaxRedirects(n int) Option {
	return func(m *Manager) { m.maxRedirects = n }
}

// NewManager creates a download manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		client:           &http.Client{},
		emitter:          events.Discard,
		logger:           log.Default(),
		metrics:          metrics.Noop{},
		progressInterval: DefaultProgressInterval,
		gracePeriod:      DefaultGracePeriod,
		maxRedirects:     DefaultMaxRedirects,
		active:           make(map[string]*activeDownload),
	}
	for _, opt := range opts {
		opt(m)
	}
	// redirects are followed by Download itself
	m.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return m
}

// Active reports whether a download for id is tracked
func (m *Manager) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Download fetches rawURL into destDir and returns the path of the archive.
// The file name is derived from id and the inferred archive extension.
func (m *Manager) Download(ctx context.Context, rawURL, id, destDir string) (string, error) {
	return m.download(ctx, rawURL, id, destDir, 0)
}

func (m *Manager) download(ctx context.Context, rawURL, id, destDir string, hops int) (string, error) {
	if hops > m.maxRedirects {
		return "", errs.ErrTooManyRedirects
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("download %q: unsupported url", rawURL)
	}

	ad, dctx, err := m.register(ctx, id)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return m.resolve(ad, "", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return m.resolve(ad, "", err)
	}
	defer resp.Body.Close()

	if isRedirect(resp.StatusCode) {
		loc, err := resp.Location()
		if err != nil {
			return m.resolve(ad, "", fmt.Errorf("redirect from %s without location: %w", rawURL, err))
		}
		if _, err := m.resolve(ad, "", nil); err != nil {
			return "", err
		}
		m.logger.Debug("following redirect", "id", id, "status", resp.StatusCode, "location", loc.String())
		return m.download(ctx, loc.String(), id, destDir, hops+1)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return m.resolve(ad, "", &errs.DownloadHTTPError{URL: rawURL, StatusCode: resp.StatusCode})
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return m.resolve(ad, "", err)
	}

	ext := inferExt(u, resp.Header.Get("Content-Disposition"))
	filePath := filepath.Join(destDir, id+ext)

	f, err := os.Create(filePath)
	if err != nil {
		return m.resolve(ad, "", err)
	}

	m.mu.Lock()
	ad.file = f
	ad.filePath = filePath
	m.mu.Unlock()

	pw := &progressWriter{
		w:        f,
		id:       id,
		url:      rawURL,
		total:    resp.ContentLength,
		interval: m.progressInterval,
		emitter:  m.emitter,
	}
	_, copyErr := io.Copy(pw, resp.Body)
	pw.flush()
	m.metrics.AddDownloadedBytes(pw.received)

	closeErr := f.Close()
	if copyErr == nil && closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		copyErr = closeErr
	}
	if copyErr != nil {
		return m.resolve(ad, filePath, copyErr)
	}

	if fam := archive.FamilyFromContentType(resp.Header.Get("Content-Type")); fam != archive.Unknown && fam != archive.FamilyFromName(filePath) {
		renamed := strings.TrimSuffix(filePath, ext) + fam.Ext()
		if err := os.Rename(filePath, renamed); err != nil {
			return m.resolve(ad, filePath, err)
		}
		m.logger.Debug("renamed download to match content type", "from", filepath.Base(filePath), "to", filepath.Base(renamed))
		m.mu.Lock()
		ad.filePath = renamed
		m.mu.Unlock()
		filePath = renamed
	}

	if m.beforeResolve != nil {
		m.beforeResolve(id)
	}
	return m.resolve(ad, filePath, nil)
}

// register waits for any earlier download with the same id to settle, then
// tracks a new entry for id.
func (m *Manager) register(ctx context.Context, id string) (*activeDownload, context.Context, error) {
	for {
		m.mu.Lock()
		prev, ok := m.active[id]
		if !ok || isClosed(prev.done) {
			dctx, cancel := context.WithCancel(ctx)
			ad := &activeDownload{id: id, cancel: cancel, done: make(chan struct{})}
			m.active[id] = ad
			m.mu.Unlock()
			return ad, dctx, nil
		}
		m.mu.Unlock()

		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// resolve is the single point where a download's outcome is decided. A
// cancelled download always resolves as cancelled and its file is removed,
// even when every byte arrived.
func (m *Manager) resolve(ad *activeDownload, filePath string, err error) (string, error) {
	m.mu.Lock()
	cancelled := ad.cancelled
	close(ad.done)
	ad.cancel()
	if cancelled {
		grace := m.gracePeriod
		time.AfterFunc(grace, func() { m.forget(ad) })
	} else if m.active[ad.id] == ad {
		delete(m.active, ad.id)
	}
	m.mu.Unlock()

	if cancelled {
		if ad.file != nil {
			ad.file.Close()
		}
		removeFile(filePath)
		removeFile(ad.filePath)
		m.logger.Info("download cancelled", "id", ad.id)
		return "", errs.ErrDownloadCancelled
	}
	if err != nil {
		removeFile(filePath)
		return "", err
	}
	return filePath, nil
}

func (m *Manager) forget(ad *activeDownload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[ad.id] == ad {
		delete(m.active, ad.id)
	}
}

// Cancel stops the download for id and deletes its partial file
func (m *Manager) Cancel(id string) CancelResult {
	m.mu.Lock()
	ad, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return CancelResult{Success: false, Error: "no active download for " + id}
	}
	if ad.cancelled {
		m.mu.Unlock()
		return CancelResult{Success: true}
	}
	ad.cancelled = true
	file, filePath := ad.file, ad.filePath
	m.mu.Unlock()

	ad.cancel()
	if file != nil {
		file.Close()
	}
	removeFile(filePath)

	return CancelResult{Success: true}
}

func removeFile(p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove partial download", "path", p, "err", err)
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// inferExt picks the archive extension from the URL path, then from the
// Content-Disposition filename, defaulting to .zip
func inferExt(u *url.URL, contentDisposition string) string {
	if fam := archive.FamilyFromName(path.Base(u.Path)); fam != archive.Unknown {
		return fam.Ext()
	}
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fam := archive.FamilyFromName(params["filename"]); fam != archive.Unknown {
				return fam.Ext()
			}
		}
	}
	return defaultExt
}

// progressWriter counts bytes and emits throttled progress events
type progressWriter struct {
	w        io.Writer
	id       string
	url      string
	total    int64
	received int64
	interval time.Duration
	last     time.Time
	emitter  events.Emitter
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.received += int64(n)
	if time.Since(pw.last) >= pw.interval {
		pw.flush()
	}
	return n, err
}

func (pw *progressWriter) flush() {
	pw.last = time.Now()
	e := events.Event{
		Type:     events.Progress,
		ID:       pw.id,
		URL:      pw.url,
		Received: pw.received,
		Total:    pw.total,
	}
	if pw.total > 0 {
		e.Percent = float64(pw.received) / float64(pw.total) * 100
	} else {
		e.Total = 0
	}
	pw.emitter.Emit(e)
}
