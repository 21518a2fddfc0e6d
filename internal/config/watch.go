package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reload is the outcome of re-reading the config file after it changed.
type Reload struct {
	Config Config
	Err    error
}

// Watcher re-reads the config file whenever it changes on disk.
// Bursts of writes collapse into one reload.
type Watcher struct {
	fs      *fsnotify.Watcher
	path    string
	quiet   time.Duration
	reloads chan Reload

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher starts watching path. The parent directory is watched so
// editors that replace the file on save are still seen.
func NewWatcher(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, err
	}

	w := &Watcher{
		fs:      fs,
		path:    path,
		quiet:   100 * time.Millisecond,
		reloads: make(chan Reload, 1),
		stop:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Reloads delivers the latest reload result. An unread result is replaced
// by a newer one. The channel is closed by Close.
func (w *Watcher) Reloads() <-chan Reload {
	return w.reloads
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.reloads)

	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.quiet)

		case <-timer.C:
			cfg, err := Load(w.path)
			w.publish(Reload{Config: cfg, Err: err})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.publish(Reload{Err: err})
		}
	}
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	if filepath.Base(e.Name) != filepath.Base(w.path) {
		return false
	}
	return e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// publish keeps only the newest result. run is the only sender.
func (w *Watcher) publish(r Reload) {
	select {
	case <-w.reloads:
	default:
	}
	w.reloads <- r
}
