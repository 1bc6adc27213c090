package packager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Targets supported by the local packager.
const (
	TargetHTML        = "html"
	TargetZip         = "zip"
	TargetZipOneAsset = "zip-one-asset"
)

// DefaultRuntimeURL is the player runtime loaded by packaged pages.
const DefaultRuntimeURL = "https://cdn.jsdelivr.net/npm/@turbowarp/scaffolding@0.2/dist/scaffolding-min.js"

// ErrInvalidOptions is returned when a settings value is out of range.
var ErrInvalidOptions = errors.New("invalid options")

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Options is the typed view of a settings file. Keys it does not know are kept
// in Raw and forwarded to the player runtime untouched.
type Options struct {
	Target         string               `json:"target"`
	App            AppOptions           `json:"app"`
	LoadingScreen  LoadingScreenOptions `json:"loadingScreen"`
	Autoplay       bool                 `json:"autoplay"`
	Controls       ControlsOptions      `json:"controls"`
	Appearance     AppearanceOptions    `json:"appearance"`
	Turbo          bool                 `json:"turbo"`
	Interpolation  bool                 `json:"interpolation"`
	HighQualityPen bool                 `json:"highQualityPen"`
	Framerate      int                  `json:"framerate"`
	MaxClones      int                  `json:"maxClones"`
	Fencing        bool                 `json:"fencing"`
	MiscLimits     bool                 `json:"miscLimits"`
	StageWidth     int                  `json:"stageWidth"`
	StageHeight    int                  `json:"stageHeight"`
	ResizeMode     string               `json:"resizeMode"`
	Username       string               `json:"username"`
	CloudVariables CloudOptions         `json:"cloudVariables"`
	Custom         CustomOptions        `json:"custom"`
	Compiler       CompilerOptions      `json:"compiler"`
	RuntimeURL     string               `json:"runtimeURL"`

	Raw map[string]any `json:"-"`
}

// AppOptions names the packaged application.
type AppOptions struct {
	PackageName string `json:"packageName"`
	WindowTitle string `json:"windowTitle"`
}

// LoadingScreenOptions configures the loading screen.
type LoadingScreenOptions struct {
	ProgressBar bool   `json:"progressBar"`
	Text        string `json:"text"`
}

// ControlOption toggles a single player control.
type ControlOption struct {
	Enabled bool `json:"enabled"`
}

// ControlsOptions toggles the player controls bar.
type ControlsOptions struct {
	GreenFlag  ControlOption `json:"greenFlag"`
	StopAll    ControlOption `json:"stopAll"`
	Fullscreen ControlOption `json:"fullscreen"`
	Pause      ControlOption `json:"pause"`
}

// AppearanceOptions holds the page colours.
type AppearanceOptions struct {
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Accent     string `json:"accent"`
}

// CloudOptions configures cloud variables.
type CloudOptions struct {
	Mode      string `json:"mode"`
	CloudHost string `json:"cloudHost"`
}

// CustomOptions holds user CSS and JS injected into the page.
type CustomOptions struct {
	CSS string `json:"css"`
	JS  string `json:"js"`
}

// CompilerOptions configures the project compiler.
type CompilerOptions struct {
	Enabled   bool `json:"enabled"`
	WarpTimer bool `json:"warpTimer"`
}

// DefaultOptions returns the options used for keys missing from a settings file.
func DefaultOptions() Options {
	return Options{
		Target:        TargetHTML,
		LoadingScreen: LoadingScreenOptions{ProgressBar: true},
		Appearance: AppearanceOptions{
			Background: "#000000",
			Foreground: "#ffffff",
			Accent:     "#ff4c4c",
		},
		Framerate:   30,
		MaxClones:   300,
		Fencing:     true,
		MiscLimits:  true,
		StageWidth:  480,
		StageHeight: 360,
		ResizeMode:  "preserve-ratio",
		Username:    "player####",
		CloudVariables: CloudOptions{
			Mode:      "ws",
			CloudHost: "wss://clouddata.turbowarp.org",
		},
		Compiler: CompilerOptions{Enabled: true},
		Raw:      map[string]any{},
	}
}

// ParseOptions decodes a JSON settings object over the defaults.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parsing settings: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Options{}, fmt.Errorf("%w: settings must be a JSON object", ErrInvalidOptions)
	}
	opts.Raw = raw
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadOptionsFile reads a settings file. Files ending in .yaml or .yml are
// decoded as YAML; everything else is JSON.
func LoadOptionsFile(filename string) (Options, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Options{}, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Options{}, fmt.Errorf("parsing settings: %w", err)
		}
		if doc == nil {
			return Options{}, fmt.Errorf("%w: settings must be a mapping", ErrInvalidOptions)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return Options{}, fmt.Errorf("parsing settings: %w", err)
		}
	}

	return ParseOptions(data)
}

// Validate checks option ranges and enumerations.
func (o Options) Validate() error {
	switch o.Target {
	case TargetHTML, TargetZip, TargetZipOneAsset:
	default:
		return fmt.Errorf("%w: unsupported target %q", ErrInvalidOptions, o.Target)
	}
	if o.Framerate < 1 || o.Framerate > 250 {
		return fmt.Errorf("%w: framerate %d out of range 1-250", ErrInvalidOptions, o.Framerate)
	}
	if o.StageWidth < 1 || o.StageWidth > 4096 || o.StageHeight < 1 || o.StageHeight > 4096 {
		return fmt.Errorf("%w: stage size %dx%d out of range", ErrInvalidOptions, o.StageWidth, o.StageHeight)
	}
	if o.MaxClones < 0 {
		return fmt.Errorf("%w: maxClones must not be negative", ErrInvalidOptions)
	}
	switch o.ResizeMode {
	case "preserve-ratio", "stretch", "dynamic-resize":
	default:
		return fmt.Errorf("%w: unknown resizeMode %q", ErrInvalidOptions, o.ResizeMode)
	}
	switch o.CloudVariables.Mode {
	case "ws", "local", "ignore", "custom":
	default:
		return fmt.Errorf("%w: unknown cloudVariables.mode %q", ErrInvalidOptions, o.CloudVariables.Mode)
	}
	for name, c := range map[string]string{
		"background": o.Appearance.Background,
		"foreground": o.Appearance.Foreground,
		"accent":     o.Appearance.Accent,
	} {
		if !colorPattern.MatchString(c) {
			return fmt.Errorf("%w: appearance.%s %q is not a hex colour", ErrInvalidOptions, name, c)
		}
	}
	return nil
}

// IsZip reports whether the target produces a zip bundle.
func (o Options) IsZip() bool {
	return o.Target == TargetZip || o.Target == TargetZipOneAsset
}

// RuntimeOptions returns the object handed to the player at startup: the raw
// settings with the typed values layered on top.
func (o Options) RuntimeOptions() (map[string]any, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var typed map[string]any
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	merged := mergeMaps(cloneMap(o.Raw), typed)
	// custom code is inlined into the page separately
	delete(merged, "custom")
	return merged, nil
}

// Marshal returns the raw settings as JSON, for sending to a remote packager.
func (o Options) Marshal() (json.RawMessage, error) {
	if o.Raw == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(o.Raw)
}

func mergeMaps(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sv, srcIsMap := v.(map[string]any)
		dv, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// packageName turns a project title into a file-safe name.
func packageName(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "project"
	}
	return slug
}
