package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFileLoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# demo credentials\n" +
		"LIVEBRIDGE_API_KEY=abc123\n" +
		"LIVEBRIDGE_ENDPOINT=\"wss://example.com/live\"\n" +
		"QUOTED='single'\n" +
		"export EXPORTED=ok\n" +
		"EXISTING=from_file\n" +
		"MALFORMED LINE\n" +
		"=nokey\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	for _, key := range []string{"LIVEBRIDGE_API_KEY", "LIVEBRIDGE_ENDPOINT", "QUOTED", "EXPORTED"} {
		key := key
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("LIVEBRIDGE_API_KEY"); got != "abc123" {
		t.Fatalf("LIVEBRIDGE_API_KEY=%q", got)
	}
	if got := os.Getenv("LIVEBRIDGE_ENDPOINT"); got != "wss://example.com/live" {
		t.Fatalf("LIVEBRIDGE_ENDPOINT=%q, want quotes stripped", got)
	}
	if got := os.Getenv("QUOTED"); got != "single" {
		t.Fatalf("QUOTED=%q", got)
	}
	if got := os.Getenv("EXPORTED"); got != "ok" {
		t.Fatalf("EXPORTED=%q", got)
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q, want existing value preserved", got)
	}
}
