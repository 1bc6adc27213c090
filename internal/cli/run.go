package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/morrisclay/sb3pack/internal/api"
	"github.com/morrisclay/sb3pack/internal/artifact"
	"github.com/morrisclay/sb3pack/internal/config"
	"github.com/morrisclay/sb3pack/internal/logger"
	"github.com/morrisclay/sb3pack/internal/packager"
	"github.com/morrisclay/sb3pack/internal/project"
	"github.com/morrisclay/sb3pack/internal/remote"
	"github.com/morrisclay/sb3pack/internal/tui/components"
)

// errMissingArgs is returned when a required packaging flag is absent.
var errMissingArgs = errors.New("Please provide --input, --output, and --settings arguments")

// packFlags holds the root command's flags.
type packFlags struct {
	input     string
	output    string
	settings  string
	name      string
	remote    bool
	host      string
	noExtract bool
	quiet     bool
}

// packageFunc produces an artifact and reports progress through onProgress.
type packageFunc func(ctx context.Context, onProgress func(packager.Progress)) (*packager.Result, error)

func runPack(ctx context.Context, f packFlags) error {
	if f.input == "" || f.output == "" || f.settings == "" {
		return errMissingArgs
	}
	log := logger.FromContext(ctx)

	opts, err := packager.LoadOptionsFile(f.settings)
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	if opts.RuntimeURL == "" {
		opts.RuntimeURL = config.GetRuntimeURL()
	}

	data, err := os.ReadFile(f.input)
	if err != nil {
		return fmt.Errorf("reading project: %w", err)
	}
	proj, err := project.Load(data)
	if err != nil {
		return fmt.Errorf("loading %s: %w", f.input, err)
	}
	proj.Title = project.TitleFromPath(f.input)
	log.Info("project.loaded", "path", f.input, "format", proj.Format, "assets", len(proj.Assets), "target", opts.Target)

	var pack packageFunc
	if f.remote {
		client := api.NewClientFromConfig(f.host)
		pack = func(ctx context.Context, onProgress func(packager.Progress)) (*packager.Result, error) {
			rp := remote.New(client)
			rp.OnProgress = onProgress
			return rp.Package(ctx, data, opts, proj.Title+".sb3")
		}
	} else {
		pack = func(ctx context.Context, onProgress func(packager.Progress)) (*packager.Result, error) {
			pk := packager.New(proj, opts)
			pk.OnProgress = onProgress
			return pk.Package(ctx)
		}
	}

	res, err := runWithProgress(ctx, "Packaging "+proj.Title, f.quiet, pack)
	if err != nil {
		return fmt.Errorf("packaging: %w", err)
	}
	log.Info("package.done", "type", res.Type, "bytes", len(res.Data), "build", res.BuildID)

	written, err := artifact.Write(ctx, res, f.output, artifact.WriteOptions{
		BaseName:    f.name,
		KeepArchive: f.noExtract,
	})
	if written != nil {
		fmt.Printf("Wrote %s (%d bytes)\n", written.Path, written.Bytes)
	}
	if err != nil {
		return err
	}

	if written.Removed && !f.quiet {
		success(fmt.Sprintf("Extracted %d files into %s", len(written.Extracted), f.output))
	}
	return nil
}

// runWithProgress runs pack under a spinner on interactive terminals and with
// plain phase lines otherwise.
func runWithProgress(ctx context.Context, message string, quiet bool, pack packageFunc) (*packager.Result, error) {
	if quiet {
		return pack(ctx, nil)
	}

	if !isInteractive() {
		var last packager.Phase
		return pack(ctx, func(pr packager.Progress) {
			if pr.Phase != last && pr.Phase != packager.PhaseDone {
				info(fmt.Sprintf("%s: %s", message, pr.Phase))
			}
			last = pr.Phase
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res, err := components.RunWithProgress(message, func(report func(string, float64)) (*packager.Result, error) {
		return pack(ctx, func(pr packager.Progress) {
			report(string(pr.Phase), pr.Fraction())
		})
	})
	if errors.Is(err, components.ErrInterrupted) {
		return nil, context.Canceled
	}
	return res, err
}
