package handler

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
)

// DefaultMaxLineLen bounds a single formatted line. Longer lines are
// truncated with truncationMark so a runaway message cannot corrupt the
// framing of adjacent lines.
const DefaultMaxLineLen = 16 * 1024

const truncationMark = "...[truncated]"

// ChownFunc changes the ownership of an open file. The default uses
// fchown on the descriptor; tests inject a recording fake so ownership
// behavior is verifiable without running privileged.
type ChownFunc func(f *os.File, uid, gid int) error

func fchown(f *os.File, uid, gid int) error {
	return unix.Fchown(int(f.Fd()), uid, gid)
}

// FileHandler appends formatted records to a log file that must be
// owned by a fixed unprivileged identity even though the process itself
// runs privileged. External rotation tooling reads and renames the file,
// which is why ownership is asserted at open time and the handler can
// reopen the path after a rotation.
type FileHandler struct {
	path      string
	uid       int
	gid       int
	mode      os.FileMode
	formatter formatter.Formatter
	minLevel  core.Level
	maxLine   int
	chown     ChownFunc

	mu      sync.Mutex
	file    *os.File
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	stats   *Stats
}

// FileConfig holds configuration for a file handler.
type FileConfig struct {
	// Path is the log file location
	Path string
	// Owner and Group name the identity the file must belong to.
	// Empty means "leave as created" (the process's own identity).
	Owner string
	Group string
	// Mode is the permission mode asserted on creation (default: 0644)
	Mode os.FileMode
	// Formatter to use; nil writes the raw message
	Formatter formatter.Formatter
	// MinLevel is the handler's own threshold (default: DebugLevel)
	MinLevel core.Level
	// MaxLineLen bounds one formatted line (default: DefaultMaxLineLen)
	MaxLineLen int
	// WatchRotate reopens the file automatically when external rotation
	// renames or removes it.
	WatchRotate bool
	// Chown overrides the ownership call (default: fchown on the open fd)
	Chown ChownFunc
}

// NewFileHandler creates the handler and opens (creating if necessary)
// the target file. Name resolution or open failures are returned
// immediately: a daemon must not start with a broken log destination.
func NewFileHandler(cfg FileConfig) (*FileHandler, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("handler: file path is required")
	}
	if cfg.Mode == 0 {
		cfg.Mode = 0o644
	}
	if cfg.MaxLineLen <= 0 {
		cfg.MaxLineLen = DefaultMaxLineLen
	}
	if cfg.Chown == nil {
		cfg.Chown = fchown
	}

	uid, gid, err := resolveOwner(cfg.Owner, cfg.Group)
	if err != nil {
		return nil, err
	}

	h := &FileHandler{
		path:      cfg.Path,
		uid:       uid,
		gid:       gid,
		mode:      cfg.Mode,
		formatter: cfg.Formatter,
		minLevel:  cfg.MinLevel,
		maxLine:   cfg.MaxLineLen,
		chown:     cfg.Chown,
		stats:     NewStats(),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, &FileError{Op: "open", Path: cfg.Path, Err: err}
	}

	h.mu.Lock()
	err = h.openLocked()
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if cfg.WatchRotate {
		if err := h.startWatcher(); err != nil {
			h.Close()
			return nil, err
		}
	}

	return h, nil
}

// resolveOwner maps user and group names (or numeric id strings) to
// numeric ids. Empty names resolve to -1, which chown treats as "leave
// unchanged".
func resolveOwner(owner, group string) (int, int, error) {
	uid, gid := -1, -1
	if owner != "" {
		if n, err := strconv.Atoi(owner); err == nil {
			uid = n
		} else {
			u, err := user.Lookup(owner)
			if err != nil {
				return 0, 0, fmt.Errorf("handler: lookup user %q: %w", owner, err)
			}
			uid, err = strconv.Atoi(u.Uid)
			if err != nil {
				return 0, 0, fmt.Errorf("handler: non-numeric uid for %q: %w", owner, err)
			}
		}
	}
	if group != "" {
		if n, err := strconv.Atoi(group); err == nil {
			gid = n
		} else {
			g, err := user.LookupGroup(group)
			if err != nil {
				return 0, 0, fmt.Errorf("handler: lookup group %q: %w", group, err)
			}
			gid, err = strconv.Atoi(g.Gid)
			if err != nil {
				return 0, 0, fmt.Errorf("handler: non-numeric gid for %q: %w", group, err)
			}
		}
	}
	return uid, gid, nil
}

// openLocked opens or creates the target file and establishes ownership
// and mode. Creation is create-then-chown-then-chmod; the narrow window
// between create and chown is a known limitation of this sequence.
// Callers must hold h.mu.
func (h *FileHandler) openLocked() error {
	_, statErr := os.Lstat(h.path)
	created := os.IsNotExist(statErr)

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, h.mode)
	if err != nil {
		return &FileError{Op: "open", Path: h.path, Err: err}
	}

	if created {
		if h.uid != -1 || h.gid != -1 {
			if err := h.chown(f, h.uid, h.gid); err != nil {
				f.Close()
				return &FileError{Op: "chown", Path: h.path, Err: err}
			}
		}
		// The umask may have masked bits off at create time.
		if err := f.Chmod(h.mode); err != nil {
			f.Close()
			return &FileError{Op: "chmod", Path: h.path, Err: err}
		}
	} else if h.uid != -1 || h.gid != -1 {
		// Existing file: assert ownership once at open, never per write.
		var st unix.Stat_t
		if err := unix.Fstat(int(f.Fd()), &st); err != nil {
			f.Close()
			return &FileError{Op: "open", Path: h.path, Err: err}
		}
		wantUID := h.uid != -1 && int(st.Uid) != h.uid
		wantGID := h.gid != -1 && int(st.Gid) != h.gid
		if wantUID || wantGID {
			if err := h.chown(f, h.uid, h.gid); err != nil {
				f.Close()
				return &FileError{Op: "chown", Path: h.path, Err: err}
			}
		}
	}

	h.file = f
	return nil
}

// Emit appends one record as a single write call.
func (h *FileHandler) Emit(r *core.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	data, err := renderRecord(h.formatter, r)
	if err != nil {
		h.stats.IncrementEmitFailures()
		return err
	}
	data = truncateLine(data, h.maxLine)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		h.stats.IncrementEmitFailures()
		return &FileError{Op: "write", Path: h.path, Err: os.ErrClosed}
	}
	if _, err := h.file.Write(data); err != nil {
		h.stats.IncrementEmitFailures()
		return &FileError{Op: "write", Path: h.path, Err: err}
	}
	h.stats.IncrementProcessed()
	return nil
}

// truncateLine bounds one formatted line to max bytes, preserving the
// trailing newline and marking the cut.
func truncateLine(data []byte, max int) []byte {
	if len(data) <= max {
		return data
	}
	keep := max - len(truncationMark) - 1
	if keep < 0 {
		keep = 0
	}
	out := append(data[:keep:keep], truncationMark...)
	return append(out, '\n')
}

// Reopen closes and reopens the target path. External rotation renames
// the live file away; reopening recreates it with the configured owner,
// group, and mode.
func (h *FileHandler) Reopen() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
	return h.openLocked()
}

// startWatcher follows rename/remove events on the target path and
// reopens it. The watch is re-armed after every reopen because rename
// moves the watch with the inode.
func (h *FileHandler) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(h.path); err != nil {
		w.Close()
		return err
	}
	h.watcher = w

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if err := h.Reopen(); err != nil {
					h.stats.IncrementEmitFailures()
					fmt.Fprintf(os.Stderr, "hostlog: reopen %s: %v\n", h.path, err)
					continue
				}
				if err := w.Add(h.path); err != nil {
					fmt.Fprintf(os.Stderr, "hostlog: rewatch %s: %v\n", h.path, err)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Stats returns a snapshot of the current statistics
func (h *FileHandler) Stats() Snapshot {
	return h.stats.GetSnapshot()
}

// Close stops the rotation watcher and closes the file.
func (h *FileHandler) Close() error {
	if h.watcher != nil {
		h.watcher.Close()
		h.wg.Wait()
		h.watcher = nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
