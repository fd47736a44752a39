package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"brutalist/internal/models"
	"brutalist/pkg/archive"
	"brutalist/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

const defaultImportInterval = 2 * time.Second

// ArchiveImporter stores an archived result file as a report.
type ArchiveImporter interface {
	ImportArchive(path string) (*models.Report, error)
}

// ArchiveWatcher imports result files that appear in the archive directory,
// such as ones copied in from another machine.
type ArchiveWatcher struct {
	dir      string
	importer ArchiveImporter
	logger   *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewArchiveWatcher(dir string, importer ArchiveImporter, log *logger.Logger) *ArchiveWatcher {
	if log == nil {
		log = logger.Default()
	}
	return &ArchiveWatcher{
		dir:      dir,
		importer: importer,
		logger:   log,
		interval: defaultImportInterval,
		pending:  make(map[string]struct{}),
	}
}

// ImportExisting imports every archive file already in the directory and
// returns how many were imported.
func (w *ArchiveWatcher) ImportExisting() (int, error) {
	files, err := archive.List(w.dir)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, file := range files {
		if w.importFile(file) {
			imported++
		}
	}
	return imported, nil
}

// Watch imports the existing files and then every file created or rewritten
// in the directory until ctx is done. Writes are batched per tick so a file
// is read once it has settled.
func (w *ArchiveWatcher) Watch(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", w.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create archive watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("error adding %s to watcher: %w", w.dir, err)
	}

	if n, err := w.ImportExisting(); err != nil {
		w.logger.WithError(err).WithField("dir", w.dir).Error("Initial archive import failed")
	} else {
		w.logger.WithFields(logger.Fields{"dir": w.dir, "count": n}).Info("Watching archive directory")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && archive.IsArchiveFile(event.Name) {
				w.mu.Lock()
				w.pending[event.Name] = struct{}{}
				w.mu.Unlock()
			}

		case <-ticker.C:
			w.flush()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).WithField("dir", w.dir).Error("Archive watcher error")

		case <-ctx.Done():
			w.logger.WithField("dir", w.dir).Info("Stopping archive watcher, performing final import")
			w.flush()
			return nil
		}
	}
}

func (w *ArchiveWatcher) flush() {
	w.mu.Lock()
	files := make([]string, 0, len(w.pending))
	for file := range w.pending {
		files = append(files, file)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, file := range files {
		w.importFile(file)
	}
}

func (w *ArchiveWatcher) importFile(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}

	report, err := w.importer.ImportArchive(path)
	if err != nil {
		w.logger.WithError(err).WithField("file", filepath.Base(path)).Warn("Skipping unreadable archive file")
		return false
	}
	return report != nil && report.Status == models.StatusImported
}
