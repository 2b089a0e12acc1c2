package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/policy"
	"hopper/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", " "); result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAllPassesForManagedDirs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(policy.NewSettings(cfg).Snapshot())
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if err := Err(results); err != nil {
		t.Fatalf("unexpected preflight error: %v", err)
	}
}

func TestRunAllReportsMissingArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.Remove(cfg.Paths.ArchiveDir); err != nil {
		t.Fatal(err)
	}
	err := Err(RunAll(policy.NewSettings(cfg).Snapshot()))
	if err == nil || !strings.Contains(err.Error(), "Archive directory") {
		t.Fatalf("expected archive failure, got %v", err)
	}
}
