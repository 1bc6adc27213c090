// Package project loads and validates Scratch 3.0 projects.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/model"
)

// Project formats.
const (
	FormatSB3  = "sb3"
	FormatJSON = "json"
)

const projectJSONName = "project.json"

var (
	// ErrUnknownFormat is returned when the input is neither an sb3 nor a project.json.
	ErrUnknownFormat = errors.New("unknown project format")
	// ErrInvalidProject is returned when project.json fails validation.
	ErrInvalidProject = errors.New("invalid project")
	// ErrUnsupportedVersion is returned for Scratch 2.0 and older projects.
	ErrUnsupportedVersion = errors.New("unsupported project version")
)

// zipMagic is the local file header signature that starts every zip archive.
var zipMagic = []byte("PK\x03\x04")

// fixedModTime keeps rebuilt archives byte-for-byte reproducible.
var fixedModTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Project is a loaded Scratch project.
type Project struct {
	Title  string
	Format string

	// JSON holds the raw project.json bytes.
	JSON []byte
	// Raw holds the bytes the project was loaded from.
	Raw []byte
	// Assets maps archive file names to their contents.
	Assets map[string][]byte

	data model.ProjectJSON
}

// LoadFile reads a project from disk and names it after the file.
func LoadFile(filename string) (*Project, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	p, err := Load(data)
	if err != nil {
		return nil, err
	}
	p.Title = TitleFromPath(filename)
	return p, nil
}

// TitleFromPath derives a project title from a file name.
func TitleFromPath(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load parses an sb3 archive or a bare project.json.
func Load(data []byte) (*Project, error) {
	p := &Project{Raw: data, Assets: make(map[string][]byte)}

	switch {
	case bytes.HasPrefix(data, zipMagic):
		p.Format = FormatSB3
		if err := p.readArchive(data); err != nil {
			return nil, err
		}
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		p.Format = FormatJSON
		p.JSON = data
	default:
		return nil, ErrUnknownFormat
	}

	if err := json.Unmarshal(p.JSON, &p.data); err != nil {
		return nil, fmt.Errorf("%w: project.json: %v", ErrInvalidProject, err)
	}
	if err := validate(&p.data); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) readArchive(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	// project.json normally sits at the root, but some tools nest everything
	// one directory deep.
	var jsonFile *zip.File
	prefix := ""
	for _, f := range zr.File {
		if f.Name == projectJSONName {
			jsonFile = f
			break
		}
	}
	if jsonFile == nil {
		for _, f := range zr.File {
			dir, name := path.Split(f.Name)
			if name == projectJSONName && strings.Count(dir, "/") == 1 {
				jsonFile = f
				prefix = dir
				break
			}
		}
	}
	if jsonFile == nil {
		return fmt.Errorf("%w: archive has no project.json", ErrInvalidProject)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		b, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		if f == jsonFile {
			p.JSON = b
			continue
		}
		p.Assets[path.Base(f.Name)] = b
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func validate(pj *model.ProjectJSON) error {
	if pj.ObjName != "" || (len(pj.Children) > 0 && string(pj.Children) != "null") {
		return fmt.Errorf("%w: Scratch 2.0 projects are not supported", ErrUnsupportedVersion)
	}
	if pj.Meta != nil && pj.Meta.Semver != "" && !strings.HasPrefix(pj.Meta.Semver, "3.") {
		return fmt.Errorf("%w: semver %q", ErrUnsupportedVersion, pj.Meta.Semver)
	}
	if len(pj.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidProject)
	}
	stages := 0
	for _, t := range pj.Targets {
		if t.IsStage {
			stages++
		}
	}
	if stages != 1 {
		return fmt.Errorf("%w: expected exactly one stage, found %d", ErrInvalidProject, stages)
	}
	return nil
}

// AssetNames returns every asset referenced by a costume or sound, sorted.
func (p *Project) AssetNames() []string {
	seen := make(map[string]bool)
	for _, t := range p.data.Targets {
		for _, c := range t.Costumes {
			if n := c.AssetName(); n != "" {
				seen[n] = true
			}
		}
		for _, s := range t.Sounds {
			if n := s.AssetName(); n != "" {
				seen[n] = true
			}
		}
	}
	return sortedKeys(seen)
}

// MissingAssets returns referenced assets that are not in the archive.
func (p *Project) MissingAssets() []string {
	var missing []string
	for _, name := range p.AssetNames() {
		if _, ok := p.Assets[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// AssetInfos describes every referenced asset.
func (p *Project) AssetInfos() []model.AssetInfo {
	names := p.AssetNames()
	infos := make([]model.AssetInfo, 0, len(names))
	for _, name := range names {
		b, ok := p.Assets[name]
		infos = append(infos, model.AssetInfo{
			Name:    name,
			Size:    int64(len(b)),
			Present: ok,
		})
	}
	return infos
}

// Summary returns a printable overview of the project.
func (p *Project) Summary() model.Summary {
	s := model.Summary{
		Title:      p.Title,
		Format:     p.Format,
		Extensions: append([]string{}, p.data.Extensions...),
		Missing:    p.MissingAssets(),
	}
	if m := p.data.Meta; m != nil {
		s.Semver, s.VM, s.Agent = m.Semver, m.VM, m.Agent
	}
	for _, t := range p.data.Targets {
		s.Targets = append(s.Targets, t.Name)
		if !t.IsStage {
			s.Sprites++
		}
		s.Costumes += len(t.Costumes)
		s.Sounds += len(t.Sounds)
	}
	for _, b := range p.Assets {
		s.Assets++
		s.AssetBytes += int64(len(b))
	}
	sort.Strings(s.Extensions)
	return s
}

// WriteSB3 writes the project as an sb3 archive. Entries are sorted and carry a
// fixed timestamp so the same project always produces the same bytes.
func (p *Project) WriteSB3(w io.Writer) error {
	zw := zip.NewWriter(w)
	if err := writeEntry(zw, projectJSONName, p.JSON); err != nil {
		return err
	}
	for _, name := range sortedAssetNames(p.Assets) {
		if err := writeEntry(zw, name, p.Assets[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// SB3 returns the project rebuilt as an sb3 archive.
func (p *Project) SB3() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.WriteSB3(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fixedModTime,
	})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func sortedAssetNames(assets map[string][]byte) []string {
	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
