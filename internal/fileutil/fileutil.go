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
)

// Mode selects how a copy treats an existing destination.
type Mode int

const (
	// Overwrite truncates an existing destination.
	Overwrite Mode = iota
	// SkipExisting leaves an existing destination untouched and reports no copy.
	SkipExisting
)

func (m Mode) String() string {
	switch m {
	case SkipExisting:
		return "skip-existing"
	default:
		return "overwrite"
	}
}

func (m Mode) openFlags() int {
	if m == SkipExisting {
		return os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	return os.O_CREATE | os.O_WRONLY | os.O_TRUNC
}

// WriteFile creates dst with default permissions (0o644) according to mode
// and fills it through write. It reports whether dst was written; in
// SkipExisting mode an existing dst yields (false, nil). A partial dst is
// removed when write or close fails.
func WriteFile(dst string, mode Mode, write func(io.Writer) error) (bool, error) {
	out, err := os.OpenFile(dst, mode.openFlags(), 0o644)
	if err != nil {
		if mode == SkipExisting && errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if err := write(out); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return false, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return false, err
	}
	return true, nil
}

// CopyFile streams src to dst. Mode semantics match WriteFile.
func CopyFile(src, dst string, mode Mode) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	return WriteFile(dst, mode, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch. Mode semantics match CopyFile.
func CopyFileVerified(src, dst string, mode Mode) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, mode.openFlags(), 0o644)
	if err != nil {
		if mode == SkipExisting && errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
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
		_ = os.Remove(dst)
		return false, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return false, err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return false, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return false, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return true, nil
}

// MoveInto copies src into dir under its own base name and removes src. The
// copy is verified; an existing same-name file in dir is kept when mode is
// SkipExisting and src is still removed. It returns the destination path.
func MoveInto(src, dir string, mode Mode) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if _, err := CopyFileVerified(src, dst, mode); err != nil {
		return dst, fmt.Errorf("copy to %s: %w", dir, err)
	}
	if err := os.Remove(src); err != nil {
		return dst, fmt.Errorf("remove source: %w", err)
	}
	return dst, nil
}
