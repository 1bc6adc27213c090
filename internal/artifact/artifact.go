// Package artifact writes packaged output to disk and unpacks zip bundles.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/morrisclay/sb3pack/internal/logger"
	"github.com/morrisclay/sb3pack/internal/packager"
)

// Output extensions.
const (
	ExtHTML = ".html"
	ExtZip  = ".zip"
)

// DefaultBaseName is the file name, without extension, of written artifacts.
const DefaultBaseName = "demo_output"

// ErrUnsafePath is returned for zip entries that would land outside the destination.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Written describes what Write left on disk.
type Written struct {
	Path      string   `json:"path"`
	Bytes     int      `json:"bytes"`
	Extracted []string `json:"extracted,omitempty"`
	Removed   bool     `json:"removed"`
}

// Extension maps a reported content type to an output extension. Only HTML
// is kept as a page; every other type is treated as a zip bundle.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	if mediaType == packager.TypeHTML {
		return ExtHTML
	}
	return ExtZip
}

// WriteOptions controls Write.
type WriteOptions struct {
	// BaseName defaults to DefaultBaseName.
	BaseName string
	// KeepArchive skips extraction and leaves the zip in place.
	KeepArchive bool
}

// Write stores res in dir. Zip artifacts are extracted into dir and the
// archive is removed afterwards.
func Write(ctx context.Context, res *packager.Result, dir string, opts WriteOptions) (*Written, error) {
	log := logger.FromContext(ctx)

	base := opts.BaseName
	if base == "" {
		base = DefaultBaseName
	}
	ext := Extension(res.Type)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	file := filepath.Join(dir, base+ext)
	if err := os.WriteFile(file, res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", file, err)
	}
	log.Info("artifact.written", "path", file, "bytes", len(res.Data), "type", res.Type)

	w := &Written{Path: file, Bytes: len(res.Data)}
	if ext != ExtZip || opts.KeepArchive {
		return w, nil
	}

	if err := ctx.Err(); err != nil {
		return w, err
	}
	extracted, err := Extract(file, dir)
	if err != nil {
		return w, fmt.Errorf("extracting %s: %w", file, err)
	}
	w.Extracted = extracted
	log.Info("artifact.extracted", "path", file, "files", len(extracted))

	if err := os.Remove(file); err != nil {
		return w, fmt.Errorf("removing %s: %w", file, err)
	}
	w.Removed = true
	return w, nil
}

// Extract unpacks a zip archive into dest, overwriting existing files. It
// returns the extracted paths relative to dest.
func Extract(zipPath, dest string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}

	var extracted []string
	for _, f := range zr.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return extracted, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return extracted, err
		}
		if err := extractFile(f, target); err != nil {
			return extracted, fmt.Errorf("%s: %w", f.Name, err)
		}
		rel, _ := filepath.Rel(root, target)
		extracted = append(extracted, filepath.ToSlash(rel))
	}
	return extracted, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm() & 0o755
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// safeJoin resolves name under root and rejects anything that escapes it.
func safeJoin(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}
