// Package library registers local audio files as songs. It scans the
// library directory at startup and follows later changes with fsnotify.
package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/config"
	"vsnplyr/internal/metadata"
	"vsnplyr/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Catalog is the song store the library keeps in step with the disk.
type Catalog interface {
	SongByAudioURL(ctx context.Context, url string) (*models.Song, error)
	CreateSong(ctx context.Context, in models.SongInput) (string, error)
	DeleteSong(ctx context.Context, id string) error
}

// Library mirrors one directory of audio files into a Catalog
type Library struct {
	config    config.LibraryConfig
	catalog   Catalog
	extractor *metadata.Extractor
	logger    *logrus.Logger

	// settle is how long a created file is left alone before reading it
	settle time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New creates a library for cfg.Path.
func New(cfg config.LibraryConfig, catalog Catalog, logger *logrus.Logger) *Library {
	return &Library{
		config:    cfg,
		catalog:   catalog,
		extractor: metadata.NewExtractor(cfg.SupportedFormats, logger),
		logger:    logger,
		settle:    500 * time.Millisecond,
	}
}

// Scan registers every audio file under the library path that has no
// song yet and returns how many were added.
func (l *Library) Scan(ctx context.Context) (int, error) {
	l.logger.WithField("library_path", l.config.Path).Info("Scanning music library")

	var wg sync.WaitGroup
	var added int64
	jobs := make(chan string, 100)

	for i := 0; i < runtime.NumCPU(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				ok, err := l.register(ctx, path)
				if err != nil {
					l.logger.WithError(err).WithField("file_path", path).Error("Error registering audio file")
					continue
				}
				if ok {
					atomic.AddInt64(&added, 1)
				}
			}
		}()
	}

	walkErr := filepath.Walk(l.config.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !info.IsDir() && l.extractor.IsAudioFile(path) && !ignored(path) {
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	l.logger.WithField("added", added).Info("Library scan finished")
	return int(added), walkErr
}

// register adds a song for path unless one already plays from it.
func (l *Library) register(ctx context.Context, path string) (bool, error) {
	url := metadata.AudioURL(path)
	_, err := l.catalog.SongByAudioURL(ctx, url)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}

	in, err := l.extractor.ExtractFromFile(path)
	if err != nil {
		return false, err
	}
	id, err := l.catalog.CreateSong(ctx, in)
	if err != nil {
		return false, err
	}

	l.logger.WithFields(logrus.Fields{
		"song_id": id,
		"artist":  in.Artist,
		"name":    in.Name,
	}).Info("Added local song")
	return true, nil
}

// unregister deletes the song playing from path, if any. The song leaves
// every playlist it was in.
func (l *Library) unregister(ctx context.Context, path string) error {
	song, err := l.catalog.SongByAudioURL(ctx, metadata.AudioURL(path))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := l.catalog.DeleteSong(ctx, song.ID); err != nil {
		return err
	}
	l.logger.WithFields(logrus.Fields{
		"song_id":   song.ID,
		"file_path": path,
	}).Info("Removed local song")
	return nil
}

// Watch starts following the library directory until ctx ends. It
// returns once the directories are being watched.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher

	if err := l.addDirectory(l.config.Path); err != nil {
		watcher.Close()
		return err
	}

	l.wg.Add(1)
	go l.watchFiles(ctx)

	l.logger.WithField("library_path", l.config.Path).Info("File watcher started")
	return nil
}

// Wait blocks until the watcher and any pending file handlers are done.
func (l *Library) Wait() {
	l.wg.Wait()
}

func (l *Library) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return l.watcher.Add(path)
		}
		return nil
	})
}

func (l *Library) watchFiles(ctx context.Context) {
	defer l.wg.Done()
	defer l.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(ctx, event)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.WithError(err).Error("File watcher error")
		}
	}
}

func (l *Library) handleEvent(ctx context.Context, event fsnotify.Event) {
	if ignored(event.Name) {
		return
	}
	isAudio := l.extractor.IsAudioFile(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isAudio:
		l.wg.Add(1)
		go func(path string) {
			defer l.wg.Done()
			select {
			case <-time.After(l.settle):
			case <-ctx.Done():
				return
			}
			if _, err := l.register(ctx, path); err != nil {
				l.logger.WithError(err).WithField("file_path", path).Error("Error registering new audio file")
			}
		}(event.Name)

	case (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && isAudio:
		l.wg.Add(1)
		go func(path string) {
			defer l.wg.Done()
			if err := l.unregister(ctx, path); err != nil {
				l.logger.WithError(err).WithField("file_path", path).Error("Error removing song for deleted file")
			}
		}(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := l.addDirectory(event.Name); err != nil {
				l.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
				return
			}
			l.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// ignored skips hidden and temporary files.
func ignored(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}
