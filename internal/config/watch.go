package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

// debounce absorbs the burst of events an editor or config-management
// tool fires for a single atomic save (write tmp + rename).
const debounce = 200 * time.Millisecond

// Watcher monitors a primary config file and its overlay directory and
// calls reload whenever either changes on disk. It exists for the
// operator-facing case of tuning Log_Level without a process restart;
// neither process reloads its wired dependencies (listeners, database
// pool, GeoIP readers) on a config change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	primary   string
	overlay   string
	lg        *galog.Logger
	reload    func()

	mu   sync.Mutex
	done chan struct{}
}

// Watch starts watching primary's directory and, if set, overlayDir for
// changes. reload is invoked (debounced) after any relevant event; it is
// the caller's responsibility to re-run LoadFile/LoadOverlays and apply
// whatever subset of the result it considers safe to hot-swap.
func Watch(lg *galog.Logger, primary, overlayDir string, reload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(primary)); err != nil {
		fsw.Close()
		return nil, err
	}
	if overlayDir != `` {
		if err := fsw.Add(overlayDir); err != nil {
			lg.Warn("config watcher: overlay directory unwatchable", galog.KV("dir", overlayDir), galog.KVErr(err))
		}
	}
	w := &Watcher{
		fsWatcher: fsw,
		primary:   filepath.Clean(primary),
		overlay:   overlayDir,
		lg:        lg,
		reload:    reload,
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.lg.Warn("config watcher error", galog.KVErr(err))
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
