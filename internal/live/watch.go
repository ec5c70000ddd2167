package live

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher pokes the service whenever a session log or transcript changes,
// so the monitor reacts faster than its poll interval. The ticker in Run
// remains the fallback when inotify is unavailable or misses events.
type Watcher struct {
	watcher *fsnotify.Watcher
	svc     *Service
}

// NewWatcher watches the sessions directory and every project transcript
// directory under agentDir. Missing directories are skipped; they get picked
// up on restart once they exist.
func NewWatcher(svc *Service, sessionsDir, agentDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{watcher: fsw, svc: svc}
	w.add(sessionsDir)

	projectsDir := filepath.Join(agentDir, "projects")
	w.add(projectsDir)
	if entries, err := os.ReadDir(projectsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				w.add(filepath.Join(projectsDir, e.Name()))
			}
		}
	}
	return w, nil
}

func (w *Watcher) add(dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	_ = w.watcher.Add(dir)
}

// Run forwards relevant filesystem events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// New project directories appear when a session starts in a
			// fresh workspace.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.add(ev.Name)
					continue
				}
			}
			if strings.HasSuffix(ev.Name, ".jsonl") {
				w.svc.Poke()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
