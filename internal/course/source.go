package course

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/infra/logger"
)

// Source yields the content tree of a course.
type Source interface {
	Tree(ctx context.Context, courseID string) (*Tree, error)
}

// Fetcher returns the raw structure document of a course.
type Fetcher interface {
	Fetch(ctx context.Context, courseID string) ([]byte, error)
}

// DocumentCache is a simple interface for storage, making it swappable (File vs SQLite)
type DocumentCache interface {
	Get(id string) ([]byte, error)
	Put(id string, data []byte) error
}

// Loader turns a Fetcher into a Source by parsing what it returns.
type Loader struct {
	Fetcher Fetcher
}

func NewLoader(f Fetcher) *Loader { return &Loader{Fetcher: f} }

func (l *Loader) Tree(ctx context.Context, courseID string) (*Tree, error) {
	data, err := l.Fetcher.Fetch(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return Parse(data, courseID)
}

// LoadFile parses a structure document stored at path.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	courseID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(data, courseID)
}

// DirFetcher reads <Dir>/<courseID>.json.
type DirFetcher struct {
	Dir string
}

func (d *DirFetcher) Fetch(_ context.Context, courseID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.Dir, url.PathEscape(courseID)+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	return data, err
}

// HTTPFetcher downloads the structure document from a URL template in which
// {course_id} is replaced with the escaped course id.
type HTTPFetcher struct {
	URLTemplate string
	Client      *http.Client
	UserAgent   string
}

func (h *HTTPFetcher) Fetch(ctx context.Context, courseID string) ([]byte, error) {
	target := strings.ReplaceAll(h.URLTemplate, "{course_id}", url.PathEscape(courseID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch course %s: unexpected status %s", courseID, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// CachedFetcher "Decorates" a Fetcher with a document cache. Fresh documents
// are written through; when the inner fetcher fails the cached copy is served
// so a course stays browsable offline.
type CachedFetcher struct {
	inner Fetcher
	cache DocumentCache
	log   *logger.Logger
}

func NewCachedFetcher(inner Fetcher, cache DocumentCache, log *logger.Logger) *CachedFetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedFetcher{inner: inner, cache: cache, log: log}
}

func (c *CachedFetcher) Fetch(ctx context.Context, courseID string) ([]byte, error) {
	data, err := c.inner.Fetch(ctx, courseID)
	if err != nil {
		cached, cerr := c.cache.Get(courseID)
		if cerr != nil {
			return nil, err
		}
		c.log.Warn("Serving cached structure for %s: %v", courseID, err)
		return cached, nil
	}

	if cached, cerr := c.cache.Get(courseID); cerr == nil && sameDocument(cached, data) {
		return data, nil
	}
	if perr := c.cache.Put(courseID, data); perr != nil {
		c.log.Warn("Failed to cache structure for %s: %v", courseID, perr)
	} else {
		c.log.Debug("Cached new structure for %s", courseID)
	}
	return data, nil
}

func sameDocument(a, b []byte) bool {
	ha, err := domain.CalculateFileHash(bytes.NewReader(a))
	if err != nil {
		return false
	}
	hb, err := domain.CalculateFileHash(bytes.NewReader(b))
	if err != nil {
		return false
	}
	return ha == hb
}
