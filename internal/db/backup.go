package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const backupTimeFormat = "20060102-150405.000000000"

// BackupManager periodically snapshots a DB into timestamped JSON files.
// A tick only writes when the catalog changed since the last write; callers
// may force a snapshot after significant changes with BackupNow. At most
// keep snapshots are retained.
type BackupManager struct {
	db       *DB
	dir      string
	interval time.Duration
	keep     int

	mu       sync.Mutex
	lastSeen int64
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewBackupManager(db *DB, dir string, interval time.Duration, keep int) (*BackupManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating backup dir %q", dir)
	}
	return &BackupManager{
		db:       db,
		dir:      dir,
		interval: interval,
		keep:     keep,
		lastSeen: db.Changes(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the ticker goroutine. Stop it with Stop; calling Start
// again while running is a no-op.
func (b *BackupManager) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()
	ticker := time.NewTicker(b.interval)
	go func() {
		defer ticker.Stop()
		defer close(b.done)
		for {
			select {
			case <-ticker.C:
				if b.db.Changes() == b.seen() {
					continue
				}
				if err := b.BackupNow(); err != nil {
					b.db.log.Error("periodic backup failed", "err", err)
				}
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *BackupManager) seen() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}

// BackupNow writes a snapshot immediately and prunes old ones.
func (b *BackupManager) BackupNow() error {
	changes := b.db.Changes()
	name := fmt.Sprintf("backup-%s.json", time.Now().UTC().Format(backupTimeFormat))
	path := filepath.Join(b.dir, name)
	if err := Save(b.db, path, b.dir); err != nil {
		return err
	}
	b.mu.Lock()
	b.lastSeen = changes
	b.mu.Unlock()
	b.db.log.Info("backup written", "path", path)
	return b.prune()
}

func (b *BackupManager) prune() error {
	if b.keep <= 0 {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(b.dir, "backup-*.json"))
	if err != nil {
		return errors.Wrap(err, "listing backups")
	}
	if len(matches) <= b.keep {
		return nil
	}
	// backup names embed a UTC timestamp, so lexical order is age order
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-b.keep] {
		if err := os.Remove(stale); err != nil {
			return errors.Wrapf(err, "pruning backup %q", stale)
		}
		b.db.log.Debug("backup pruned", "path", stale)
	}
	return nil
}

// Stop halts the ticker goroutine and waits for it to exit. Idempotent.
func (b *BackupManager) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	b.stopOnce.Do(func() { close(b.stop) })
	if started {
		<-b.done
	}
}
