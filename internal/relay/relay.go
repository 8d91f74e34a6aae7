// Package relay watches inbox directories for reply artifacts and
// resolves the coordination requests they answer. It closes the loop
// for replies that arrive as files: replies sent through the dispatcher
// resolve their requests at delivery time, while artifacts dropped by
// agents (or foreign tooling) land here.
package relay

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

// Resolution is one reply artifact matched to a pending request.
type Resolution struct {
	RequestID string
	From      string
	Path      string
	At        time.Time
}

// Opts holds parameters for creating a Relay.
type Opts struct {
	Tracker *tracker.Tracker
	DB      *gorm.DB // optional coordination event journal
	Dirs    []string // inbox directories to watch for reply artifacts
	Now     func() time.Time
}

// Relay matches reply artifacts against the tracker.
type Relay struct {
	trk  *tracker.Tracker
	db   *gorm.DB
	dirs []string
	now  func() time.Time
}

// New creates a Relay.
func New(opts Opts) (*Relay, error) {
	if opts.Tracker == nil {
		return nil, fmt.Errorf("relay: tracker is required")
	}
	if len(opts.Dirs) == 0 {
		return nil, fmt.Errorf("relay: at least one watch directory is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Relay{trk: opts.Tracker, db: opts.DB, dirs: opts.Dirs, now: opts.Now}, nil
}

// Scan processes every artifact already present in the watched
// directories, resolving any that answer a pending request. Run calls
// it once at startup so replies dropped while the relay was down are
// not lost.
func (r *Relay) Scan() ([]Resolution, error) {
	var all []Resolution
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return all, fmt.Errorf("relay: scan %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if res, ok := r.process(filepath.Join(dir, e.Name())); ok {
				all = append(all, res)
			}
		}
	}
	return all, nil
}

// Run scans the watched directories, then emits a Resolution for every
// reply artifact that settles a pending request until the context ends.
// The channel is closed on shutdown.
func (r *Relay) Run(ctx context.Context) (<-chan Resolution, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("relay: watcher: %w", err)
	}
	for _, dir := range r.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.Close()
			return nil, fmt.Errorf("relay: create %s: %w", dir, err)
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("relay: watch %s: %w", dir, err)
		}
	}

	ch := make(chan Resolution, 16)
	go func() {
		defer close(ch)
		defer w.Close()

		emit := func(res Resolution) bool {
			select {
			case ch <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Catch artifacts that predate the watch.
		startup, err := r.Scan()
		if err != nil {
			log.Printf("relay: startup scan: %v", err)
		}
		for _, res := range startup {
			if !emit(res) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if res, ok := r.process(ev.Name); ok {
					if !emit(res) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("relay: watch: %v", err)
			}
		}
	}()
	return ch, nil
}

// process parses one artifact and resolves the request it answers.
// Artifacts without an in-reply-to header, unparseable files, and
// replies to unknown or already-settled requests are all skipped;
// processing the same file twice is harmless.
func (r *Relay) process(path string) (Resolution, bool) {
	if !strings.HasSuffix(path, ".msg") {
		return Resolution{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("relay: read %s: %v", path, err)
		return Resolution{}, false
	}
	info, err := envelope.ParseArtifact(data)
	if err != nil {
		return Resolution{}, false
	}
	if info.InReplyTo == "" {
		return Resolution{}, false
	}

	req, ok := r.trk.Get(info.InReplyTo)
	if !ok {
		return Resolution{}, false
	}
	if !r.trk.Resolve(info.InReplyTo) {
		return Resolution{}, false
	}

	if r.db != nil {
		if _, err := journal.RecordEvent(r.db, models.EventResolved, info.InReplyTo, req.Requester, req.Target); err != nil {
			log.Printf("relay: journal: %v", err)
		}
	}

	return Resolution{
		RequestID: info.InReplyTo,
		From:      info.From,
		Path:      path,
		At:        r.now(),
	}, true
}
