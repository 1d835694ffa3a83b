package webassets

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFallbackFS_Files(t *testing.T) {
	fsys := FallbackFS()
	for _, name := range []string{"maintenance.html", "404.html"} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "<!doctype html>") {
			t.Errorf("%s does not look like an html page", name)
		}
	}
}

func TestFallbackFS_MaintenanceIsNoindex(t *testing.T) {
	data, err := fs.ReadFile(FallbackFS(), "maintenance.html")
	if err != nil {
		t.Fatal(err)
	}
	body := strings.ToLower(string(data))
	if !strings.Contains(body, "maintenance") || !strings.Contains(body, `content="noindex"`) {
		t.Fatalf("unexpected maintenance page:\n%s", body)
	}
}

func TestFallbackFS_Rooted(t *testing.T) {
	if _, err := fs.Stat(FallbackFS(), "../embed.go"); err == nil {
		t.Fatal("fallback fs should not reach its parent")
	}
	if _, err := fs.Stat(FallbackFS(), "fallback"); err == nil {
		t.Fatal("fallback fs should be rooted inside fallback/")
	}
}
