// Package checksum computes SHA-256 digests of file contents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"hopper/internal/fileutil"
)

const bufferSize = 4 * 1024

// File streams path through SHA-256 and returns the lowercase hex digest.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return sum, nil
}

// Reader consumes r and returns the lowercase hex SHA-256 digest.
func Reader(r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// WriteFile computes the digest of src and writes it to dst as a single line
// with no trailing newline, replacing any existing file. It returns the digest.
func WriteFile(src, dst string) (string, error) {
	sum, err := File(src)
	if err != nil {
		return "", err
	}
	_, err = fileutil.WriteFile(dst, fileutil.Overwrite, func(w io.Writer) error {
		_, err := io.WriteString(w, sum)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write checksum %s: %w", dst, err)
	}
	return sum, nil
}
