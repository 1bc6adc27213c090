package artifact

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/packager"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(files[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"text/html", ExtHTML},
		{"text/html; charset=utf-8", ExtHTML},
		{"TEXT/HTML", ExtHTML},
		{"application/zip", ExtZip},
		{"application/octet-stream", ExtZip},
		{"", ExtZip},
	}
	for _, tt := range tests {
		if got := Extension(tt.contentType); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	res := &packager.Result{Type: packager.TypeHTML, Data: []byte("<html></html>")}

	w, err := Write(context.Background(), res, dir, WriteOptions{})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := filepath.Join(dir, "demo_output.html")
	if w.Path != want {
		t.Errorf("Path = %v, want %v", w.Path, want)
	}
	if w.Bytes != len(res.Data) {
		t.Errorf("Bytes = %d, want %d", w.Bytes, len(res.Data))
	}
	got, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(got) != "<html></html>" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteZipExtractsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	// existing files are overwritten
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	res := &packager.Result{
		Type: packager.TypeZip,
		Data: buildZip(t, map[string]string{
			"index.html":        "new",
			"assets/a.svg":      "<svg/>",
			"assets/nested/b.x": "b",
		}),
	}

	w, err := Write(context.Background(), res, dir, WriteOptions{})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !w.Removed {
		t.Error("Removed = false, want true")
	}
	if _, err := os.Stat(filepath.Join(dir, "demo_output.zip")); !os.IsNotExist(err) {
		t.Error("intermediate archive still present")
	}
	if len(w.Extracted) != 3 {
		t.Errorf("Extracted = %v, want 3 files", w.Extracted)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if string(got) != "new" {
		t.Errorf("index.html = %q, want new", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "assets", "nested", "b.x")); err != nil {
		t.Errorf("nested file not extracted: %v", err)
	}
}

func TestWriteZipKeepArchive(t *testing.T) {
	dir := t.TempDir()
	res := &packager.Result{
		Type: packager.TypeZip,
		Data: buildZip(t, map[string]string{"index.html": "x"}),
	}

	w, err := Write(context.Background(), res, dir, WriteOptions{BaseName: "game", KeepArchive: true})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if w.Removed || len(w.Extracted) != 0 {
		t.Errorf("archive was extracted: %+v", w)
	}
	if _, err := os.Stat(filepath.Join(dir, "game.zip")); err != nil {
		t.Errorf("archive missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); !os.IsNotExist(err) {
		t.Error("index.html extracted despite KeepArchive")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	tests := []string{
		"../escape.txt",
		"assets/../../escape.txt",
		"/abs.txt",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			zipPath := filepath.Join(dir, "bad.zip")
			if err := os.WriteFile(zipPath, buildZip(t, map[string]string{name: "x"}), 0644); err != nil {
				t.Fatal(err)
			}
			dest := filepath.Join(dir, "out")

			// the zip reader may refuse the archive before safeJoin sees it
			if _, err := Extract(zipPath, dest); err == nil {
				t.Error("Extract() error = nil, want error")
			}
			if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
				t.Error("file escaped the destination")
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"index.html", false},
		{"assets/a.svg", false},
		{"assets/../index.html", false},
		{"../escape.txt", true},
		{"assets/../../escape.txt", true},
		{"/abs.txt", true},
		{`assets\a.svg`, true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := safeJoin(root, tt.name)
		if tt.wantErr && !errors.Is(err, ErrUnsafePath) {
			t.Errorf("safeJoin(%q) error = %v, want ErrUnsafePath", tt.name, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("safeJoin(%q) error = %v", tt.name, err)
		}
	}
}

func TestWriteInvalidZip(t *testing.T) {
	dir := t.TempDir()
	res := &packager.Result{Type: packager.TypeZip, Data: []byte("not a zip")}

	if _, err := Write(context.Background(), res, dir, WriteOptions{}); err == nil {
		t.Fatal("Write() error = nil, want error for corrupt archive")
	}
}
