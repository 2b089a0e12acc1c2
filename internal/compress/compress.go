// Package compress writes gzip copies of input files.
package compress

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"

	"hopper/internal/fileutil"
)

const bufferSize = 4 * 1024

// ErrSourceNotFound is returned when the file to compress does not exist.
var ErrSourceNotFound = errors.New("compress: source not found")

// File gzips src into dst, creating or truncating dst. The gzip header carries
// no name or modification time, so identical inputs produce identical outputs.
// On failure dst is removed.
func File(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if _, err := fileutil.WriteFile(dst, fileutil.Overwrite, func(w io.Writer) error {
		return Stream(w, in)
	}); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// Stream gzips everything read from r into w.
func Stream(w io.Writer, r io.Reader) error {
	gz := gzip.NewWriter(w)
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(gz, r, buf); err != nil {
		_ = gz.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	return nil
}
