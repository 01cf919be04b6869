package collector

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCookieFile(t *testing.T) {
	content := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"# This is a comment line",
		"",
		".youtube.com\tTRUE\t/\tTRUE\t1999999999\tSID\tsid-value",
		"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t1999999999\tHSID\thsid-value",
		"short\tline",
		".youtube.com\tTRUE\t/\tTRUE\t0\tSESSION\tsession-value",
	}, "\n")

	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	jar, err := loadCookieFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, _ := url.Parse("https://youtube.com/")
	cookies := jar.Cookies(u)
	byName := make(map[string]string, len(cookies))
	for _, c := range cookies {
		byName[c.Name] = c.Value
	}
	if byName["SID"] != "sid-value" {
		t.Fatalf("expected SID cookie, got %v", byName)
	}
	if byName["HSID"] != "hsid-value" {
		t.Fatalf("expected HttpOnly-prefixed cookie honored, got %v", byName)
	}
	if byName["SESSION"] != "session-value" {
		t.Fatalf("expected session cookie without expiry, got %v", byName)
	}
	if _, ok := byName["line"]; ok {
		t.Fatal("short line must be skipped")
	}
}

func TestLoadCookieFileMissing(t *testing.T) {
	_, err := loadCookieFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if got := CategoryOf(err); got != CategoryFilesystem {
		t.Fatalf("expected filesystem category, got %q", got)
	}
}
