package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hopper/internal/config"
	"hopper/internal/ipc"
	"hopper/internal/testsupport"
)

func TestRunAndStatusCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteContent(t, filepath.Join(env.cfg.Paths.InputDir, "notes.txt"), "hello")
	testsupport.WriteContent(t, filepath.Join(env.cfg.Paths.InputDir, "photo.jpg"), "pixels")

	out, _, err := runCLI(t, []string{"run"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Processed 2 files")
	requireContains(t, out, "1 valid, 1 invalid, 0 unresolved")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[WARN] stopped")
	requireContains(t, out, "Input directory:")
	requireContains(t, out, "Processed")
	requireContains(t, out, "notes.txt: valid file")
	requireContains(t, out, "photo.jpg: invalid file, reason: extension error")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var resp ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode status json: %v", err)
	}
	if resp.Processed != 2 || resp.Valid != 1 || resp.Failed != 1 {
		t.Fatalf("unexpected status json %+v", resp)
	}
}

func TestStartStopCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Processing started")

	out, _, err = runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	requireContains(t, out, "Processing already running")

	out, _, err = runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Processing stopped")
	if env.daemon.Status().Running {
		t.Fatal("expected processing stopped")
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No files processed yet")
}

func TestSetCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"set", "addext", "csv"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	requireContains(t, out, "addext: .txt,.doc -> .txt,.doc,.csv")

	if _, _, err := runCLI(t, []string{"set", "bogus", "1"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}

	out, _, err = runCLI(t, []string{"set", "help"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("set help: %v", err)
	}
	requireContains(t, out, "history (job_num)")
	requireContains(t, out, "delext")
}

func TestConfigShowPrefersDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.daemon.Set("history", "4"); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "Source: daemon")
	requireContains(t, out, "1 (1.0 MiB)")

	out, _, err = runCLI(t, []string{"config", "show", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show --json: %v", err)
	}
	var resp ipc.ConfigResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.HistorySize != 4 {
		t.Fatalf("expected live history size 4, got %d", resp.HistorySize)
	}
}

func TestConfigShowFallsBackToFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "Source: "+configPath)
	requireContains(t, out, cfg.Paths.ArchiveDir)
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(t.TempDir(), "hopper.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	cfg, _, _, err := config.Load(target)
	if err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(cfg.Paths.InputDir); err != nil || !info.IsDir() {
		t.Fatalf("validate should create the input directory: %v", err)
	}
}

func TestStatusOfflineShowsDirectoryChecks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN] not running")
	requireContains(t, out, "Archive directory:")
	requireContains(t, out, "[OK]")
}

func TestCatalogListThroughDaemonAndOffline(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCatalog())
	testsupport.WriteContent(t, filepath.Join(env.cfg.Paths.InputDir, "ledger.txt"), strings.Repeat("x", 2048))
	if _, _, err := runCLI(t, []string{"run"}, env.socketPath, env.configPath); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"catalog", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "ledger.txt")
	requireContains(t, out, "2.0 KiB")
	requireContains(t, out, "valid: 1 total")

	// Point at a socket nobody listens on to force the direct read.
	offline := filepath.Join(testsupport.BaseDir(env.cfg), "absent.sock")
	out, _, err = runCLI(t, []string{"catalog", "list", "--json"}, offline, env.configPath)
	if err != nil {
		t.Fatalf("offline catalog list: %v", err)
	}
	var resp ipc.CatalogListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 || resp.Records[0].File != "ledger.txt" {
		t.Fatalf("unexpected offline records %+v", resp.Records)
	}
}

func TestShellSession(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteContent(t, filepath.Join(env.cfg.Paths.InputDir, "a.txt"), "alpha")

	input := strings.Join([]string{
		"once",
		"status",
		"set mb 2",
		"set mb",
		"config",
		"frobnicate",
		"EXIT",
		"status",
	}, "\n")
	out, _, err := runCLIWithInput(t, []string{"shell"}, env.socketPath, env.configPath, input)
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	requireContains(t, out, "Processed 1 files")
	requireContains(t, out, "a.txt: valid file")
	requireContains(t, out, "mb: 1 -> 2")
	requireContains(t, out, "usage: set <key> <value>")
	requireContains(t, out, `invalid command "frobnicate"`)
	if strings.Count(out, "== Daemon ==") != 1 {
		t.Fatalf("commands after exit should not run:\n%s", out)
	}
}

func TestCommandsWithoutDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"history"}, "", configPath)
	if err == nil || !strings.Contains(err.Error(), "hopper start") {
		t.Fatalf("expected connect hint, got %v", err)
	}
	out, _, err := runCLI(t, []string{"shutdown"}, "", configPath)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLogsHistoryShowsTrailingOutcomes(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		testsupport.WriteContent(t, filepath.Join(env.cfg.Paths.InputDir, name), name)
		if _, _, err := runCLI(t, []string{"run"}, env.socketPath, env.configPath); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err := runCLI(t, []string{"logs", "--history", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	requireContains(t, lines[0], "two.txt: valid file")
	requireContains(t, lines[1], "three.txt: valid file")
}

func TestLogsWithoutRunLog(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"logs"}, "", configPath)
	if err == nil || !strings.Contains(err.Error(), "no daemon run log found") {
		t.Fatalf("expected missing run log error, got %v", err)
	}
}

func TestTestNotify(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var (
		mu     sync.Mutex
		titles []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	disabledPath := writeTestConfig(t, cfg)
	out, _, err := runCLI(t, []string{"test-notify"}, "", disabledPath)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "Notifications disabled")

	cfg.Notifications.NtfyTopic = srv.URL
	enabledPath := writeTestConfig(t, cfg)
	out, _, err = runCLI(t, []string{"test-notify"}, "", enabledPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || titles[0] != "Hopper - Test" {
		t.Fatalf("unexpected requests %v", titles)
	}
}
