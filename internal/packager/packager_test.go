package packager

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/project"
)

const testProjectJSON = `{
  "targets": [
    {"isStage": true, "name": "Stage",
     "costumes": [{"name": "backdrop1", "assetId": "aaa", "md5ext": "aaa.svg", "dataFormat": "svg"}],
     "sounds": []},
    {"isStage": false, "name": "Sprite1",
     "costumes": [],
     "sounds": [{"name": "pop", "assetId": "bbb", "md5ext": "bbb.wav", "dataFormat": "wav"}]}
  ],
  "meta": {"semver": "3.0.0"}
}`

func loadTestProject(t *testing.T, withAssets bool) *project.Project {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{"project.json": testProjectJSON}
	if withAssets {
		files["aaa.svg"] = "<svg/>"
		files["bbb.wav"] = "RIFF"
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	p, err := project.Load(buf.Bytes())
	if err != nil {
		t.Fatalf("project.Load() error = %v", err)
	}
	p.Title = "Test Game"
	return p
}

func mustOptions(t *testing.T, settings string) Options {
	t.Helper()
	opts, err := ParseOptions([]byte(settings))
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	return opts
}

func zipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestPackageHTML(t *testing.T) {
	p := loadTestProject(t, true)
	pk := New(p, mustOptions(t, `{"target": "html", "loadingScreen": {"text": "Loading..."}}`))

	res, err := pk.Package(context.Background())
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	if res.Type != TypeHTML {
		t.Errorf("Type = %v, want %v", res.Type, TypeHTML)
	}
	if res.Filename != "test-game.html" {
		t.Errorf("Filename = %v, want test-game.html", res.Filename)
	}
	if res.BuildID == "" {
		t.Error("BuildID is empty")
	}

	page := string(res.Data)
	for _, want := range []string{
		"<title>Test Game</title>",
		`<meta name="sb3pack-build" content="` + res.BuildID + `">`,
		"Loading...",
		DefaultRuntimeURL,
		`"type":"base64"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	sb3, err := p.SB3()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page, base64.StdEncoding.EncodeToString(sb3)) {
		t.Error("page does not embed the project archive")
	}
}

func TestPackageZip(t *testing.T) {
	p := loadTestProject(t, true)
	pk := New(p, mustOptions(t, `{"target": "zip"}`))

	res, err := pk.Package(context.Background())
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	if res.Type != TypeZip {
		t.Errorf("Type = %v, want %v", res.Type, TypeZip)
	}

	entries := zipEntries(t, res.Data)
	want := []string{"assets/aaa.svg", "assets/bbb.wav", "assets/project.json", "index.html"}
	if got := keys(entries); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
	if string(entries["assets/project.json"]) != testProjectJSON {
		t.Error("project.json was modified")
	}
	if !strings.Contains(string(entries["index.html"]), `"assetBase":"assets/"`) {
		t.Error("index.html does not point at the assets directory")
	}
}

func TestPackageZipOneAsset(t *testing.T) {
	p := loadTestProject(t, true)
	pk := New(p, mustOptions(t, `{"target": "zip-one-asset"}`))

	res, err := pk.Package(context.Background())
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	entries := zipEntries(t, res.Data)
	if got := keys(entries); !reflect.DeepEqual(got, []string{"index.html", "project.zip"}) {
		t.Errorf("entries = %v", got)
	}
	inner, err := project.Load(entries["project.zip"])
	if err != nil {
		t.Fatalf("project.zip does not load: %v", err)
	}
	if len(inner.Assets) != 2 {
		t.Errorf("project.zip has %d assets, want 2", len(inner.Assets))
	}
}

func TestPackageMissingAssets(t *testing.T) {
	p := loadTestProject(t, false)
	_, err := New(p, DefaultOptions()).Package(context.Background())
	if !errors.Is(err, ErrMissingAssets) {
		t.Fatalf("Package() error = %v, want ErrMissingAssets", err)
	}
	if !strings.Contains(err.Error(), "aaa.svg") {
		t.Errorf("error %q does not name the missing asset", err)
	}
}

func TestPackageCancelled(t *testing.T) {
	p := loadTestProject(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(p, mustOptions(t, `{"target": "zip"}`)).Package(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Package() error = %v, want context.Canceled", err)
	}
}

func TestPackageProgress(t *testing.T) {
	p := loadTestProject(t, true)
	pk := New(p, mustOptions(t, `{"target": "zip"}`))

	var phases []Phase
	pk.OnProgress = func(pr Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != pr.Phase {
			phases = append(phases, pr.Phase)
		}
	}
	if _, err := pk.Package(context.Background()); err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	want := []Phase{PhaseLoad, PhaseRender, PhaseAssets, PhaseZip, PhaseDone}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestCustomCodeCannotCloseElement(t *testing.T) {
	p := loadTestProject(t, true)
	opts := mustOptions(t, `{"custom": {"js": "alert(1)</script><b>x</b>", "css": "body{}</STYLE>"}}`)

	res, err := New(p, opts).Package(context.Background())
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	page := string(res.Data)
	if strings.Contains(page, "alert(1)</script>") {
		t.Error("custom JS closed the script element")
	}
	if !strings.Contains(page, `alert(1)<\/script>`) {
		t.Error("custom JS was not inlined")
	}
	if strings.Contains(page, "body{}</STYLE>") {
		t.Error("custom CSS closed the style element")
	}
}

func TestRuntimeOptionsKeepUnknownKeys(t *testing.T) {
	p := loadTestProject(t, true)
	opts := mustOptions(t, `{"turbo": true, "experimental": {"flag": 1}, "app": {"windowMode": "fullscreen"}}`)

	res, err := New(p, opts).Package(context.Background())
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	page := string(res.Data)
	if !strings.Contains(page, `"experimental":{"flag":1}`) {
		t.Error("unknown settings key was dropped")
	}
	if !strings.Contains(page, `"turbo":true`) {
		t.Error("turbo option missing from runtime options")
	}
	if !strings.Contains(page, `"windowMode":"fullscreen"`) {
		t.Error("unknown app key was dropped")
	}
	if !strings.Contains(page, `"windowTitle":"Test Game"`) {
		t.Error("windowTitle missing from app options")
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Loaded: 1, Total: 4}, 0.25},
		{Progress{Loaded: 5, Total: 4}, 1},
		{Progress{Loaded: 1, Total: 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("%+v.Fraction() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
