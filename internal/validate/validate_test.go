package validate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/testsupport"
	"hopper/internal/validate"
)

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	allowed := []string{".txt", ".doc"}
	const limit = 1024 * 1024

	cases := []struct {
		name   string
		file   string
		size   int64
		ok     bool
		reason string
	}{
		{name: "small txt", file: "report.txt", size: 512, ok: true},
		{name: "exact limit", file: "edge.doc", size: limit, ok: true},
		{name: "upper case extension", file: "NOTES.TXT", size: 10, ok: true},
		{name: "oversize", file: "big.txt", size: limit + 1, reason: validate.ReasonSize},
		{name: "bad extension", file: "img.png", size: 10, reason: validate.ReasonExtension},
		{name: "both", file: "img2.png", size: 2 * limit, reason: "file size validation error and extension error"},
		{name: "no extension", file: "README", size: 10, reason: validate.ReasonExtension},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			testsupport.WriteFile(t, path, tc.size)
			got := validate.Validate(path, limit, allowed)
			if got.OK != tc.ok || got.Reason != tc.reason {
				t.Fatalf("Validate(%s) = %+v, want ok=%v reason=%q", tc.file, got, tc.ok, tc.reason)
			}
			if got.Size != tc.size {
				t.Fatalf("Size = %d, want %d", got.Size, tc.size)
			}
		})
	}
}

func TestValidateMissingFile(t *testing.T) {
	got := validate.Validate(filepath.Join(t.TempDir(), "gone.txt"), 10, []string{".txt"})
	if got.OK {
		t.Fatal("expected missing file to fail")
	}
	if !strings.HasPrefix(got.Reason, "unable to validate: ") {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
}

func TestValidateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "folder.txt")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	got := validate.Validate(dir, 10, []string{".txt"})
	if got.OK || got.Reason != validate.ReasonNotRegular {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := validate.NormalizeExtensions([]string{"TXT", " .doc ", "", "..csv", ".txt"})
	want := ".txt,.doc,.csv"
	if strings.Join(got, ",") != want {
		t.Fatalf("NormalizeExtensions = %v, want %s", got, want)
	}
}
