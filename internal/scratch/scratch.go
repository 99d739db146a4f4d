package scratch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"chapterreel/internal/textutil"
)

const (
	lockSuffix     = ".lock"
	lockRetryDelay = 250 * time.Millisecond
	// uuidSuffixLen is len("-") + len(uuid string).
	uuidSuffixLen = 37
)

// Dir is a run-scoped scratch directory.
type Dir struct {
	Path  string
	RunID string
}

// Create makes a fresh directory for one run of projectID. runID must be a
// UUID; an empty runID generates one.
func Create(root, projectID, runID string) (Dir, error) {
	if strings.TrimSpace(root) == "" {
		return Dir{}, errors.New("scratch root not configured")
	}
	if runID == "" {
		runID = uuid.NewString()
	} else if _, err := uuid.Parse(runID); err != nil {
		return Dir{}, fmt.Errorf("run id %q: %w", runID, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Dir{}, fmt.Errorf("create scratch root: %w", err)
	}
	path := filepath.Join(root, textutil.SanitizeToken(projectID)+"-"+runID)
	if err := os.Mkdir(path, 0o755); err != nil {
		return Dir{}, fmt.Errorf("create run scratch: %w", err)
	}
	return Dir{Path: path, RunID: runID}, nil
}

// Remove deletes the directory and everything in it.
func (d Dir) Remove() error {
	if strings.TrimSpace(d.Path) == "" {
		return nil
	}
	return os.RemoveAll(d.Path)
}

// LockPath returns the advisory lock file for projectID.
func LockPath(root, projectID string) string {
	return filepath.Join(root, textutil.SanitizeToken(projectID)+lockSuffix)
}

// Lock is a held per-project lock.
type Lock struct {
	lock *flock.Flock
}

// AcquireLock blocks until the project lock is free or ctx ends.
func AcquireLock(ctx context.Context, root, projectID string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	fl := flock.New(LockPath(root, projectID))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire project lock: %s busy", fl.Path())
	}
	return &Lock{lock: fl}, nil
}

// TryAcquireLock takes the project lock without waiting. ok is false when
// another process holds it.
func TryAcquireLock(root, projectID string) (*Lock, bool, error) {
	fl := flock.New(LockPath(root, projectID))
	ok, err := fl.TryLock()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lock{lock: fl}, true, nil
}

// Release unlocks the project.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// projectToken recovers the project token from a run directory name.
func projectToken(name string) (string, bool) {
	if len(name) <= uuidSuffixLen || name[len(name)-uuidSuffixLen] != '-' {
		return "", false
	}
	if _, err := uuid.Parse(name[len(name)-uuidSuffixLen+1:]); err != nil {
		return "", false
	}
	return name[:len(name)-uuidSuffixLen], true
}
