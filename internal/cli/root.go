// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/morrisclay/sb3pack/internal/logger"
	"github.com/morrisclay/sb3pack/pkg/version"
)

var (
	flags packFlags
	debug bool
)

// closeLogger is replaced by the cleanup of a debug log file.
var closeLogger = func() error { return nil }

var rootCmd = &cobra.Command{
	Use:   "sb3pack -i <project.sb3> -o <dir> -s <settings.json>",
	Short: "Package Scratch 3 projects into standalone HTML or zip bundles",
	Long: `sb3pack packages a Scratch 3 project (.sb3) with a settings file into a
standalone page (demo_output.html) or a zip bundle that is extracted into the
output directory.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cleanup, err := logger.Setup(logger.Config{Debug: debug})
		if err != nil {
			warn(fmt.Sprintf("debug log disabled: %v", err))
		} else {
			closeLogger = cleanup
			if p := logger.Path(); p != "" {
				info(fmt.Sprintf("Debug log: %s", p))
			}
		}
		ctx := logger.WithLogger(cmd.Context(), logger.L())
		cmd.SetContext(ctx)
		logger.FromContext(ctx).Debug("command.start", "command", cmd.CommandPath(), "version", version.Version)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPack(cmd.Context(), flags)
	},
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLogger()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			errorf("interrupted")
		} else {
			errorf("%v", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	f := rootCmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "Scratch project file (.sb3)")
	f.StringVarP(&flags.output, "output", "o", "", "Output directory")
	f.StringVarP(&flags.settings, "settings", "s", "", "Packager settings file (JSON or YAML)")
	f.StringVar(&flags.name, "name", "", "Output file name without extension (default demo_output)")
	f.BoolVar(&flags.remote, "remote", false, "Package on the remote packaging service")
	f.StringVarP(&flags.host, "host", "H", "", "Remote service host")
	f.BoolVar(&flags.noExtract, "no-extract", false, "Keep zip output as an archive")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Only print the written path")

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write a JSON debug log to ~/.sb3pack/logs")

	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// helper functions for output

func success(msg string) {
	fmt.Printf("✓ %s\n", msg)
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func warn(msg string) {
	fmt.Printf("! %s\n", msg)
}

func info(msg string) {
	fmt.Printf("→ %s\n", msg)
}
