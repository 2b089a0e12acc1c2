package checksum_test

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/checksum"
	"hopper/internal/testsupport"
)

const sampleDigest = "03da1a5051f672775ee5b4efbbb51010f2f303953cd6d0fd00631f5aa79f1fae"

func TestReaderKnownVector(t *testing.T) {
	got, err := checksum.Reader(strings.NewReader("This is for Multibeam test."))
	if err != nil {
		t.Fatal(err)
	}
	if got != sampleDigest {
		t.Fatalf("digest = %s, want %s", got, sampleDigest)
	}
}

func TestFileIsDeterministicAcrossBuffers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.txt")
	testsupport.WriteFile(t, path, 10*1024+7)

	first, err := checksum.File(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := checksum.File(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("digests differ: %s vs %s", first, second)
	}
	if len(first) != 64 || strings.ToLower(first) != first {
		t.Fatalf("unexpected digest format %q", first)
	}
}

func TestWriteFileHasNoTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sample.txt")
	dst := filepath.Join(dir, "sample.checksum")
	testsupport.WriteContent(t, src, "This is for Multibeam test.")
	testsupport.WriteContent(t, dst, "stale contents that are longer than a digest line, to prove truncation happens")

	sum, err := checksum.WriteFile(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if sum != sampleDigest {
		t.Fatalf("digest = %s", sum)
	}
	if got := testsupport.ReadFile(t, dst); got != sampleDigest {
		t.Fatalf("artifact = %q", got)
	}
}

func TestFileMissing(t *testing.T) {
	_, err := checksum.File(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
