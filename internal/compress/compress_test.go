package compress_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"hopper/internal/compress"
	"hopper/internal/testsupport"
)

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.txt")
	dst := filepath.Join(dir, "report.gz")
	testsupport.WriteFile(t, src, 70*1024)

	if err := compress.File(src, dst); err != nil {
		t.Fatalf("File: %v", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("decompressed content differs from source")
	}
}

func TestFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	dst := filepath.Join(dir, "notes.gz")
	testsupport.WriteContent(t, src, "This is for Multibeam test.")

	if err := compress.File(src, dst); err != nil {
		t.Fatal(err)
	}
	first := testsupport.ReadFile(t, dst)
	if err := compress.File(src, dst); err != nil {
		t.Fatal(err)
	}
	if second := testsupport.ReadFile(t, dst); second != first {
		t.Fatal("second compression produced different bytes")
	}
}

func TestFileReplacesStaleArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	dst := filepath.Join(dir, "notes.gz")
	testsupport.WriteContent(t, src, "short")
	testsupport.WriteFile(t, dst, 64*1024)

	if err := compress.File(src, dst); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("stale bytes survived: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("decompressed %q", got)
	}
}

func TestFileSourceNotFound(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.gz")
	err := compress.File(filepath.Join(dir, "missing.txt"), dst)
	if !errors.Is(err, compress.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	testsupport.AssertMissing(t, dst)
}
