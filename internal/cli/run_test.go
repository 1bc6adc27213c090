package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/config"
	"github.com/morrisclay/sb3pack/internal/model"
	"github.com/morrisclay/sb3pack/internal/packager"
	"github.com/morrisclay/sb3pack/internal/project"
)

const fixtureProjectJSON = `{
  "targets": [
    {"isStage": true, "name": "Stage",
     "costumes": [{"name": "backdrop1", "assetId": "aaa", "md5ext": "aaa.svg", "dataFormat": "svg"}],
     "sounds": []}
  ],
  "meta": {"semver": "3.0.0"}
}`

// useTempHome points HOME at a fresh directory so config writes stay local.
func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvHost, "")
	t.Setenv(config.EnvAPIKey, "")
	return dir
}

// writeFixture writes game.sb3 and settings.json into a temp dir.
func writeFixture(t *testing.T, settings string) (input, settingsPath string) {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"project.json": fixtureProjectJSON,
		"aaa.svg":      "<svg/>",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	input = filepath.Join(dir, "game.sb3")
	if err := os.WriteFile(input, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	settingsPath = filepath.Join(dir, "settings.json")
	if err := os.WriteFile(settingsPath, []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}
	return input, settingsPath
}

func TestRunPackMissingArgs(t *testing.T) {
	tests := []struct {
		name string
		f    packFlags
	}{
		{"no flags", packFlags{}},
		{"no input", packFlags{output: "out", settings: "s.json"}},
		{"no output", packFlags{input: "a.sb3", settings: "s.json"}},
		{"no settings", packFlags{input: "a.sb3", output: "out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runPack(context.Background(), tt.f)
			if !errors.Is(err, errMissingArgs) {
				t.Fatalf("runPack() error = %v, want errMissingArgs", err)
			}
		})
	}
	if errMissingArgs.Error() != "Please provide --input, --output, and --settings arguments" {
		t.Errorf("message = %q", errMissingArgs)
	}
}

func TestRunPackHTML(t *testing.T) {
	useTempHome(t)
	input, settings := writeFixture(t, `{"target":"html"}`)
	out := filepath.Join(t.TempDir(), "nested", "out")

	err := runPack(context.Background(), packFlags{input: input, output: out, settings: settings, quiet: true})
	if err != nil {
		t.Fatalf("runPack() error = %v", err)
	}

	page, err := os.ReadFile(filepath.Join(out, "demo_output.html"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Contains(page, []byte(packager.DefaultRuntimeURL)) {
		t.Error("page does not load the default runtime")
	}
	if _, err := os.Stat(filepath.Join(out, "demo_output.zip")); !os.IsNotExist(err) {
		t.Error("unexpected demo_output.zip")
	}
}

func TestRunPackZipExtracts(t *testing.T) {
	useTempHome(t)
	input, settings := writeFixture(t, `{"target":"zip"}`)
	out := t.TempDir()

	err := runPack(context.Background(), packFlags{input: input, output: out, settings: settings, quiet: true})
	if err != nil {
		t.Fatalf("runPack() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(out, "demo_output.zip")); !os.IsNotExist(err) {
		t.Error("archive was not removed after extraction")
	}
	for _, name := range []string{"index.html", "assets/project.json", "assets/aaa.svg"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(name))); err != nil {
			t.Errorf("missing extracted file %s: %v", name, err)
		}
	}
}

func TestRunPackNoExtractAndName(t *testing.T) {
	useTempHome(t)
	input, settings := writeFixture(t, `{"target":"zip-one-asset"}`)
	out := t.TempDir()

	err := runPack(context.Background(), packFlags{
		input: input, output: out, settings: settings,
		name: "bundle", noExtract: true, quiet: true,
	})
	if err != nil {
		t.Fatalf("runPack() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "bundle.zip")); err != nil {
		t.Errorf("bundle.zip not kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "index.html")); !os.IsNotExist(err) {
		t.Error("archive was extracted with noExtract set")
	}
}

func TestRunPackRuntimeURLFromConfig(t *testing.T) {
	useTempHome(t)
	if err := config.SetRuntimeURL("https://runtime.example.test/player.js"); err != nil {
		t.Fatal(err)
	}
	input, settings := writeFixture(t, `{}`)
	out := t.TempDir()

	if err := runPack(context.Background(), packFlags{input: input, output: out, settings: settings, quiet: true}); err != nil {
		t.Fatalf("runPack() error = %v", err)
	}
	page, err := os.ReadFile(filepath.Join(out, "demo_output.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "https://runtime.example.test/player.js") {
		t.Error("configured runtime url not used")
	}
}

func TestRunPackErrors(t *testing.T) {
	useTempHome(t)
	input, settings := writeFixture(t, `{"target":"zip"}`)
	dir := t.TempDir()

	badSettings := filepath.Join(dir, "bad.json")
	os.WriteFile(badSettings, []byte(`{"target":`), 0o644)
	unknownTarget := filepath.Join(dir, "electron.json")
	os.WriteFile(unknownTarget, []byte(`{"target":"electron-win32"}`), 0o644)
	notProject := filepath.Join(dir, "notes.txt")
	os.WriteFile(notProject, []byte("hello"), 0o644)

	tests := []struct {
		name string
		f    packFlags
		want error
	}{
		{"unreadable input", packFlags{input: filepath.Join(dir, "missing.sb3"), output: dir, settings: settings}, os.ErrNotExist},
		{"unreadable settings", packFlags{input: input, output: dir, settings: filepath.Join(dir, "missing.json")}, os.ErrNotExist},
		{"invalid settings json", packFlags{input: input, output: dir, settings: badSettings}, nil},
		{"unsupported target", packFlags{input: input, output: dir, settings: unknownTarget}, packager.ErrInvalidOptions},
		{"not a project", packFlags{input: notProject, output: dir, settings: settings}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f.quiet = true
			err := runPack(context.Background(), tt.f)
			if err == nil {
				t.Fatal("runPack() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("runPack() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunPackRemote(t *testing.T) {
	useTempHome(t)
	input, settings := writeFixture(t, `{"target":"html","extra":1}`)
	out := t.TempDir()

	var gotOptions string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer env-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req model.JobRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotOptions = string(req.Options)
		json.NewEncoder(w).Encode(model.Job{ID: "j1", Status: model.JobStatusSucceeded})
	})
	mux.HandleFunc("/api/v1/jobs/j1/artifact", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>remote</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	t.Setenv(config.EnvAPIKey, "env-key")

	err := runPack(context.Background(), packFlags{
		input: input, output: out, settings: settings,
		remote: true, host: server.URL, quiet: true,
	})
	if err != nil {
		t.Fatalf("runPack() error = %v", err)
	}

	page, err := os.ReadFile(filepath.Join(out, "demo_output.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(page) != "<html>remote</html>" {
		t.Errorf("page = %q", page)
	}
	if !strings.Contains(gotOptions, `"extra":1`) {
		t.Errorf("options sent = %s, want raw settings", gotOptions)
	}
}

func TestQueryProject(t *testing.T) {
	input, _ := writeFixture(t, `{}`)
	proj, err := project.LoadFile(input)
	if err != nil {
		t.Fatal(err)
	}

	v, err := queryProject(proj, "$.targets[0].name")
	if err != nil {
		t.Fatalf("queryProject() error = %v", err)
	}
	if v != "Stage" {
		t.Errorf("queryProject() = %v, want Stage", v)
	}

	if _, err := queryProject(proj, "$.targets[("); err == nil {
		t.Error("queryProject() with bad expression: error = nil")
	}
}
