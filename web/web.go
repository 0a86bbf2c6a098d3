// Package web holds the chat front-end: an index page and its static assets.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

//go:embed static
var embedded embed.FS

// Assets returns the static asset tree (index.html, app.js, style.css).
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic("embedded static dir missing: " + err.Error())
	}
	return sub
}

// Page serves the index page. With a path it serves that file and reloads it
// whenever it changes on disk; otherwise it serves the embedded copy.
type Page struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu   sync.RWMutex
	body []byte
}

// NewPage loads the index page. An empty path selects the embedded page.
func NewPage(path string, logger *zap.Logger) (*Page, error) {
	p := &Page{
		logger: logger,
		done:   make(chan struct{}),
	}

	if path == "" {
		body, err := fs.ReadFile(Assets(), "index.html")
		if err != nil {
			return nil, fmt.Errorf("reading embedded index: %w", err)
		}
		p.body = body
		close(p.done)
		return p, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	p.path = abs

	if err := p.reload(); err != nil {
		return nil, err
	}

	// Editors often replace files rather than write in place, so watch the
	// directory and filter on the file name.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	p.watcher = watcher

	go p.watch()

	logger.Info("serving index page from disk", zap.String("path", abs))
	return p, nil
}

// Body returns the current page contents.
func (p *Page) Body() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.body
}

// Close stops watching the page file.
func (p *Page) Close() error {
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *Page) reload() error {
	body, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("reading index %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.body = body
	p.mu.Unlock()
	return nil
}

func (p *Page) watch() {
	defer close(p.done)

	for {
		select {
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != p.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Keep serving the previous body if the file is mid-rewrite.
			if err := p.reload(); err != nil {
				p.logger.Warn("failed to reload index page", zap.Error(err))
				continue
			}
			p.logger.Debug("reloaded index page", zap.String("path", p.path))

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("index page watcher error", zap.Error(err))
		}
	}
}
