package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/morrisclay/sb3pack/internal/config"
)

func newConfigCmd() *cobra.Command {
	var host, outputFormat, runtimeURL string
	var show bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update CLI configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show config if --show or no flags
			if show || (host == "" && outputFormat == "" && runtimeURL == "") {
				cfg, err := config.LoadConfig()
				if err != nil {
					return err
				}

				if config.GetOutputFormat() == "json" {
					outputJSON(cfg)
				} else {
					fmt.Printf("default_host:  %s\n", cfg.DefaultHost)
					fmt.Printf("output_format: %s\n", cfg.OutputFormat)
					fmt.Printf("runtime_url:   %s\n", cfg.RuntimeURL)
				}
				return nil
			}

			// Update config
			if host != "" {
				if err := config.SetHost(host); err != nil {
					return fmt.Errorf("failed to set host: %w", err)
				}
				success(fmt.Sprintf("Default host set to %s", host))
			}

			if outputFormat != "" {
				if outputFormat != "table" && outputFormat != "json" {
					return fmt.Errorf("output format must be 'table' or 'json'")
				}
				if err := config.SetOutputFormat(outputFormat); err != nil {
					return fmt.Errorf("failed to set output format: %w", err)
				}
				success(fmt.Sprintf("Output format set to %s", outputFormat))
			}

			if runtimeURL != "" {
				u, err := url.Parse(runtimeURL)
				if err != nil || u.Scheme == "" || u.Host == "" {
					return fmt.Errorf("runtime url must be absolute: %q", runtimeURL)
				}
				if err := config.SetRuntimeURL(runtimeURL); err != nil {
					return fmt.Errorf("failed to set runtime url: %w", err)
				}
				success(fmt.Sprintf("Runtime URL set to %s", runtimeURL))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Set default host")
	cmd.Flags().StringVar(&outputFormat, "output", "", "Set output format (table, json)")
	cmd.Flags().StringVar(&runtimeURL, "runtime-url", "", "Set the default player runtime URL")
	cmd.Flags().BoolVar(&show, "show", false, "Show current configuration")

	return cmd
}
