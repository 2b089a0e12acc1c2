package policy_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hopper/internal/policy"
	"hopper/internal/testsupport"
)

func TestSnapshotReflectsConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxFileSizeMB(2))
	settings := policy.NewSettings(cfg)

	snap := settings.Snapshot()
	if snap.InputDir != cfg.Paths.InputDir || snap.ArchiveDir != cfg.Paths.ArchiveDir {
		t.Fatalf("unexpected dirs %+v", snap)
	}
	if snap.MaxSizeBytes != 2*1024*1024 {
		t.Fatalf("MaxSizeBytes = %d", snap.MaxSizeBytes)
	}
	if snap.PollInterval != time.Second {
		t.Fatalf("PollInterval = %v", snap.PollInterval)
	}
}

func TestSnapshotIsIsolatedFromLaterChanges(t *testing.T) {
	settings := policy.NewSettings(testsupport.NewConfig(t))
	before := settings.Snapshot()

	if _, err := settings.Apply("addext", "CSV"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(before.AllowedExtensions, ",") != ".txt,.doc" {
		t.Fatalf("earlier snapshot mutated: %v", before.AllowedExtensions)
	}
	if got := strings.Join(settings.Snapshot().AllowedExtensions, ","); got != ".txt,.doc,.csv" {
		t.Fatalf("extensions after addext = %q", got)
	}
}

func TestApplyDirectoryKeysTargetTheirOwnField(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	settings := policy.NewSettings(cfg)
	base := testsupport.BaseDir(cfg)

	failed := filepath.Join(base, "rejects")
	archive := filepath.Join(base, "kept")
	if _, err := settings.Apply("failed", failed); err != nil {
		t.Fatal(err)
	}
	if _, err := settings.Apply("archive", archive); err != nil {
		t.Fatal(err)
	}

	snap := settings.Snapshot()
	if snap.FailedDir != failed || snap.ArchiveDir != archive {
		t.Fatalf("unexpected dirs %+v", snap)
	}
	if snap.OutputDir != cfg.Paths.OutputDir {
		t.Fatalf("output dir changed to %q", snap.OutputDir)
	}
	for _, dir := range []string{failed, archive} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to be created: %v", dir, err)
		}
	}
}

func TestApplyRejectsInvalidValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	settings := policy.NewSettings(cfg)

	cases := []struct {
		key, value string
	}{
		{"history", "0"},
		{"job_num", "abc"},
		{"mb", "-1"},
		{"interval", "0"},
		{"output", cfg.Paths.InputDir},
		{"logfile", "nested/dir.txt"},
		{"mb", ""},
	}
	for _, tc := range cases {
		if _, err := settings.Apply(tc.key, tc.value); err == nil {
			t.Fatalf("Apply(%q, %q) succeeded, want error", tc.key, tc.value)
		}
	}
	if settings.Snapshot().OutputDir != cfg.Paths.OutputDir {
		t.Fatal("rejected change was committed")
	}
}

func TestApplyUnknownKey(t *testing.T) {
	settings := policy.NewSettings(testsupport.NewConfig(t))
	_, err := settings.Apply("colour", "blue")
	if !errors.Is(err, policy.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestApplyHistoryAliasAndChangeReport(t *testing.T) {
	settings := policy.NewSettings(testsupport.NewConfig(t))
	change, err := settings.Apply("job_num", "3")
	if err != nil {
		t.Fatal(err)
	}
	if change.Key != "history" || change.Previous != "10" || change.Current != "3" {
		t.Fatalf("unexpected change %+v", change)
	}
	if settings.Snapshot().HistorySize != 3 {
		t.Fatal("history size not applied")
	}
}

func TestApplyDelextAndMB(t *testing.T) {
	settings := policy.NewSettings(testsupport.NewConfig(t))
	if _, err := settings.Apply("delext", "TXT"); err != nil {
		t.Fatal(err)
	}
	if _, err := settings.Apply("mb", "0.5"); err != nil {
		t.Fatal(err)
	}
	snap := settings.Snapshot()
	if strings.Join(snap.AllowedExtensions, ",") != ".doc" {
		t.Fatalf("extensions = %v", snap.AllowedExtensions)
	}
	if snap.MaxSizeBytes != 512*1024 {
		t.Fatalf("MaxSizeBytes = %d", snap.MaxSizeBytes)
	}
}

func TestApplyLogfileChangesHistoryPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	settings := policy.NewSettings(cfg)
	if _, err := settings.Apply("logfile", "outcomes.txt"); err != nil {
		t.Fatal(err)
	}
	if got := settings.HistoryLogPath(); got != filepath.Join(cfg.Paths.LogDir, "outcomes.txt") {
		t.Fatalf("HistoryLogPath = %q", got)
	}
}
