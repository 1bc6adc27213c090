package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morrisclay/sb3pack/internal/tui/components"
	"github.com/morrisclay/sb3pack/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.String())
			if !check {
				return nil
			}

			lookup := func() (string, error) { return version.CheckLatest(cmd.Context()) }
			var latest string
			var err error
			if isInteractive() {
				latest, err = components.RunWithLoading("Checking for updates...", lookup)
			} else {
				latest, err = lookup()
			}
			if err != nil {
				warn(fmt.Sprintf("could not check for updates: %v", err))
				return nil
			}
			if version.IsOutdated(version.Version, latest) {
				warn(fmt.Sprintf("sb3pack %s is available", latest))
			} else {
				success("Up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
