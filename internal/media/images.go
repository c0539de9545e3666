package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Image is a loaded picture.
type Image struct {
	Ref  string
	Path string
	Data []byte
}

// ImageLoader resolves an image reference.
type ImageLoader interface {
	LoadImage(ctx context.Context, ref string) (*Image, error)
}

// DirLoader reads images from a directory.
type DirLoader struct {
	Dir string
}

// LoadImage implements ImageLoader.
func (l DirLoader) LoadImage(ctx context.Context, ref string) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(l.Dir, filepath.Clean("/"+ref))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", ref, err)
	}
	return &Image{Ref: ref, Path: path, Data: data}, nil
}

// ImageCache memoizes successful loads by reference for the lifetime of a
// session. Failed loads are not cached, so a later request retries.
//
// Thread-safety: ImageCache is safe for concurrent use.
type ImageCache struct {
	loader ImageLoader
	logger *slog.Logger

	mu     sync.Mutex
	images map[string]*Image
	loads  int
	// gen counts Resets. A load begun under an older gen is not stored.
	gen int
}

// NewImageCache wraps loader. A nil logger uses slog.Default().
func NewImageCache(loader ImageLoader, logger *slog.Logger) *ImageCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageCache{loader: loader, logger: logger, images: make(map[string]*Image)}
}

// Get returns the image for ref, loading it on a miss. An empty ref or a
// failed load yields nil.
func (c *ImageCache) Get(ctx context.Context, ref string) *Image {
	if ref == "" || c.loader == nil {
		return nil
	}

	c.mu.Lock()
	img, ok := c.images[ref]
	gen := c.gen
	c.mu.Unlock()
	if ok {
		return img
	}

	img, err := c.loader.LoadImage(ctx, ref)
	if err != nil {
		c.logger.Warn("image load failed", "ref", ref, "error", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("discarding image loaded before reset", "ref", ref)
		return img
	}
	c.images[ref] = img
	c.loads++
	return img
}

// Prefetch loads every uncached ref concurrently and waits for them.
func (c *ImageCache) Prefetch(ctx context.Context, refs []string) {
	var wg sync.WaitGroup
	for _, ref := range refs {
		if ref == "" || c.Cached(ref) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get(ctx, ref)
		}()
	}
	wg.Wait()
}

// Cached reports whether ref has been loaded.
func (c *ImageCache) Cached(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.images[ref]
	return ok
}

// Loads returns how many loads succeeded since the last Reset.
func (c *ImageCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Reset drops every cached image. Loads still in flight finish but are not
// cached.
func (c *ImageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]*Image)
	c.loads = 0
	c.gen++
}
