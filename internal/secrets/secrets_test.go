package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupPrefersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	t.Setenv("TG_TOKEN", "from-env")
	t.Setenv("TG_TOKEN_FILE", path)

	value, found, err := Lookup("TG_TOKEN")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || value != "from-file" {
		t.Errorf("got (%q, %v), want (from-file, true)", value, found)
	}
}

func TestOptionalFallback(t *testing.T) {
	t.Setenv("MISSING_SECRET", "")
	if got := Optional("MISSING_SECRET", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}

	t.Setenv("BROKEN_SECRET_FILE", "/does/not/exist")
	if got := Optional("BROKEN_SECRET", "fallback"); got != "fallback" {
		t.Errorf("unreadable file: got %q, want fallback", got)
	}
}
