package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrOutsideRoot is returned when a relative path resolves outside its root.
var ErrOutsideRoot = errors.New("path escapes root")

// ResolveWithin joins rel onto root and rejects results that leave root,
// including through symlinks that already exist on disk.
func ResolveWithin(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New("empty path")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	candidate := rel
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !within(absRoot, candidate) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRoot)
	}

	realRoot, rootErr := filepath.EvalSymlinks(absRoot)
	realCandidate, candErr := filepath.EvalSymlinks(candidate)
	if rootErr == nil && candErr == nil && !within(realRoot, realCandidate) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRoot)
	}
	return candidate, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// RequireFile verifies path names an existing regular file.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", path)
	}
	return nil
}

// NonEmptyFile returns the size of path and fails when it is missing or empty.
func NonEmptyFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%s: empty file", path)
	}
	return info.Size(), nil
}

// Publish moves src to dst. Same-filesystem moves are a single rename; across
// filesystems src is copied to a hidden .partial sibling of dst, verified, and
// renamed into place, so dst never exists in a partial state. Unless overwrite
// is set an existing dst fails with fs.ErrExist, including one that appears
// while the move is in flight.
func Publish(src, dst string, overwrite bool) error {
	move := os.Rename
	if !overwrite {
		move = renameNoReplace
	}

	err := move(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", dst, fs.ErrExist)
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}

	partial := PartialPath(dst)
	if err := CopyFileVerified(src, partial); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("copy across filesystems: %w", err)
	}
	if err := move(partial, dst); err != nil {
		_ = os.Remove(partial)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", dst, fs.ErrExist)
		}
		return fmt.Errorf("rename partial: %w", err)
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// renameNoReplace renames src to dst atomically failing with fs.ErrExist when
// dst exists. Filesystems without RENAME_NOREPLACE fall back to link+unlink,
// which is equally exclusive.
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EOPNOTSUPP):
	default:
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}

	if err := os.Link(src, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &os.LinkError{Op: "link", Old: src, New: dst, Err: fs.ErrExist}
		}
		return err
	}
	return os.Remove(src)
}

// PartialPath returns the hidden in-progress name used while publishing dst.
func PartialPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial")
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}
