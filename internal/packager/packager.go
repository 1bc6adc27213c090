// Package packager turns a loaded Scratch project into a standalone HTML page
// or a zip bundle of a web player.
package packager

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/project"
)

// Content types reported in Result.Type.
const (
	TypeHTML = "text/html"
	TypeZip  = "application/zip"
)

// ErrMissingAssets is returned when the project references assets it does not contain.
var ErrMissingAssets = errors.New("project is missing assets")

//go:embed templates/player.html
var templateFS embed.FS

var playerTemplate = template.Must(template.ParseFS(templateFS, "templates/player.html"))

var bundleModTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Phase names a stage of packaging.
type Phase string

// Packaging phases, in order.
const (
	PhaseLoad   Phase = "load"
	PhaseAssets Phase = "assets"
	PhaseRender Phase = "render"
	PhaseZip    Phase = "zip"
	PhaseDone   Phase = "done"
)

// Progress reports how far packaging has come.
type Progress struct {
	Phase  Phase
	Loaded int64
	Total  int64
}

// Fraction returns progress within the phase as a value in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Loaded) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Result is a packaged artifact.
type Result struct {
	Type     string
	Data     []byte
	Filename string
	BuildID  string
}

// Packager packages a single project with a fixed set of options.
type Packager struct {
	Project    *project.Project
	Options    Options
	OnProgress func(Progress)
}

// New creates a packager.
func New(p *project.Project, opts Options) *Packager {
	return &Packager{Project: p, Options: opts}
}

// Package builds the artifact selected by Options.Target.
func (pk *Packager) Package(ctx context.Context) (*Result, error) {
	if pk.Project == nil {
		return nil, errors.New("no project loaded")
	}
	if err := pk.Options.Validate(); err != nil {
		return nil, err
	}
	pk.progress(PhaseLoad, 1, 1)

	if missing := pk.Project.MissingAssets(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingAssets, strings.Join(missing, ", "))
	}

	buildID := uuid.NewString()
	name := pk.packageName()

	var (
		res *Result
		err error
	)
	switch pk.Options.Target {
	case TargetHTML:
		res, err = pk.packageHTML(ctx, buildID)
		if res != nil {
			res.Filename = name + ".html"
		}
	case TargetZip:
		res, err = pk.packageZip(ctx, buildID)
		if res != nil {
			res.Filename = name + ".zip"
		}
	case TargetZipOneAsset:
		res, err = pk.packageZipOneAsset(ctx, buildID)
		if res != nil {
			res.Filename = name + ".zip"
		}
	}
	if err != nil {
		return nil, err
	}

	res.BuildID = buildID
	pk.progress(PhaseDone, int64(len(res.Data)), int64(len(res.Data)))
	return res, nil
}

func (pk *Packager) packageHTML(ctx context.Context, buildID string) (*Result, error) {
	sb3, err := pk.rebuildSB3(ctx)
	if err != nil {
		return nil, err
	}
	page, err := pk.render(buildID, projectSource{
		Type: "base64",
		Data: base64.StdEncoding.EncodeToString(sb3),
	})
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypeHTML, Data: page}, nil
}

func (pk *Packager) packageZip(ctx context.Context, buildID string) (*Result, error) {
	page, err := pk.render(buildID, projectSource{
		Type:      "url",
		URL:       "assets/project.json",
		AssetBase: "assets/",
	})
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{
		"index.html":          page,
		"assets/project.json": pk.Project.JSON,
	}
	names := sortedNames(pk.Project.Assets)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files["assets/"+name] = pk.Project.Assets[name]
		pk.progress(PhaseAssets, int64(i+1), int64(len(names)))
	}

	data, err := pk.writeBundle(ctx, files)
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypeZip, Data: data}, nil
}

func (pk *Packager) packageZipOneAsset(ctx context.Context, buildID string) (*Result, error) {
	sb3, err := pk.rebuildSB3(ctx)
	if err != nil {
		return nil, err
	}
	page, err := pk.render(buildID, projectSource{Type: "url", URL: "project.zip"})
	if err != nil {
		return nil, err
	}
	data, err := pk.writeBundle(ctx, map[string][]byte{
		"index.html":  page,
		"project.zip": sb3,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Type: TypeZip, Data: data}, nil
}

// rebuildSB3 walks the assets so progress and cancellation behave the same
// for every target, then writes the archive.
func (pk *Packager) rebuildSB3(ctx context.Context) ([]byte, error) {
	names := sortedNames(pk.Project.Assets)
	for i := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pk.progress(PhaseAssets, int64(i+1), int64(len(names)))
	}
	return pk.Project.SB3()
}

// projectSource tells the page where to find the project.
type projectSource struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
	AssetBase string `json:"assetBase,omitempty"`
}

type pageData struct {
	Title       string
	BuildID     string
	RuntimeURL  string
	Background  template.CSS
	Foreground  template.CSS
	Accent      template.CSS
	LoadingText string
	ProgressBar bool
	CustomCSS   template.CSS
	CustomJS    template.JS
	OptionsJSON template.JS
	SourceJSON  template.JS
}

func (pk *Packager) render(buildID string, src projectSource) ([]byte, error) {
	pk.progress(PhaseRender, 0, 1)
	o := pk.Options

	runtimeOpts, err := o.RuntimeOptions()
	if err != nil {
		return nil, err
	}
	app, ok := runtimeOpts["app"].(map[string]any)
	if !ok {
		app = map[string]any{}
	}
	app["packageName"] = pk.packageName()
	app["windowTitle"] = pk.windowTitle()
	runtimeOpts["app"] = app
	optsJSON, err := json.Marshal(runtimeOpts)
	if err != nil {
		return nil, fmt.Errorf("encoding runtime options: %w", err)
	}
	srcJSON, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}

	runtimeURL := o.RuntimeURL
	if runtimeURL == "" {
		runtimeURL = DefaultRuntimeURL
	}

	data := pageData{
		Title:       pk.windowTitle(),
		BuildID:     buildID,
		RuntimeURL:  runtimeURL,
		Background:  template.CSS(o.Appearance.Background),
		Foreground:  template.CSS(o.Appearance.Foreground),
		Accent:      template.CSS(o.Appearance.Accent),
		LoadingText: o.LoadingScreen.Text,
		ProgressBar: o.LoadingScreen.ProgressBar,
		CustomCSS:   template.CSS(escapeClosingTag(o.Custom.CSS, "style")),
		CustomJS:    template.JS(escapeClosingTag(o.Custom.JS, "script")),
		OptionsJSON: template.JS(optsJSON),
		SourceJSON:  template.JS(srcJSON),
	}

	var buf bytes.Buffer
	if err := playerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	pk.progress(PhaseRender, 1, 1)
	return buf.Bytes(), nil
}

func (pk *Packager) writeBundle(ctx context.Context, files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := sortedNames(files)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: bundleModTime,
		})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(files[name]); err != nil {
			return nil, err
		}
		pk.progress(PhaseZip, int64(i+1), int64(len(names)))
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (pk *Packager) packageName() string {
	if pk.Options.App.PackageName != "" {
		return packageName(pk.Options.App.PackageName)
	}
	return packageName(pk.Project.Title)
}

func (pk *Packager) windowTitle() string {
	if pk.Options.App.WindowTitle != "" {
		return pk.Options.App.WindowTitle
	}
	if pk.Project.Title != "" {
		return pk.Project.Title
	}
	return "Packaged Project"
}

func (pk *Packager) progress(phase Phase, loaded, total int64) {
	if pk.OnProgress != nil {
		pk.OnProgress(Progress{Phase: phase, Loaded: loaded, Total: total})
	}
}

var closingTags = map[string]*regexp.Regexp{
	"script": regexp.MustCompile(`(?i)</(script)`),
	"style":  regexp.MustCompile(`(?i)</(style)`),
}

// escapeClosingTag keeps user code from ending its enclosing element early.
func escapeClosingTag(s, tag string) string {
	re, ok := closingTags[tag]
	if !ok {
		return s
	}
	return re.ReplaceAllString(s, `<\/$1`)
}

func sortedNames(m map[string][]byte) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
