package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/spf13/cobra"

	"github.com/morrisclay/sb3pack/internal/config"
	"github.com/morrisclay/sb3pack/internal/model"
	"github.com/morrisclay/sb3pack/internal/project"
)

func newInspectCmd() *cobra.Command {
	var outputFormat, query string
	var assets bool

	cmd := &cobra.Command{
		Use:   "inspect <project.sb3>",
		Short: "Show what a project contains",
		Example: `  sb3pack inspect game.sb3
  sb3pack inspect game.sb3 --assets
  sb3pack inspect game.sb3 --query '$.targets[*].name'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := outputFormat
			if format == "" {
				format = config.GetOutputFormat()
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("output format must be 'table' or 'json'")
			}

			proj, err := project.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}

			switch {
			case query != "":
				v, err := queryProject(proj, query)
				if err != nil {
					return err
				}
				outputJSON(v)
				return nil
			case assets:
				return printAssets(format, proj)
			default:
				printSummary(format, proj.Summary())
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&outputFormat, "output", "", "Output format (table, json)")
	cmd.Flags().StringVar(&query, "query", "", "JSONPath expression evaluated against project.json")
	cmd.Flags().BoolVar(&assets, "assets", false, "List costume and sound assets")

	return cmd
}

// queryProject evaluates a JSONPath expression against project.json.
func queryProject(proj *project.Project, query string) (any, error) {
	var doc any
	if err := json.Unmarshal(proj.JSON, &doc); err != nil {
		return nil, fmt.Errorf("decoding project.json: %w", err)
	}
	v, err := jsonpath.Get(query, doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	return v, nil
}

func printSummary(format string, s model.Summary) {
	rows := [][]string{
		{"Title", s.Title},
		{"Format", s.Format},
		{"Semver", s.Semver},
		{"VM", s.VM},
		{"Targets", truncate(strings.Join(s.Targets, ", "), 60)},
		{"Sprites", strconv.Itoa(s.Sprites)},
		{"Costumes", strconv.Itoa(s.Costumes)},
		{"Sounds", strconv.Itoa(s.Sounds)},
		{"Extensions", strings.Join(s.Extensions, ", ")},
		{"Assets", fmt.Sprintf("%d (%s)", s.Assets, formatBytes(s.AssetBytes))},
	}
	if len(s.Missing) > 0 {
		rows = append(rows, []string{"Missing", strings.Join(s.Missing, ", ")})
	}
	output(format, s, []string{"FIELD", "VALUE"}, rows)
}

func printAssets(format string, proj *project.Project) error {
	infos := proj.AssetInfos()
	if len(infos) == 0 && format != "json" {
		info("Project has no assets")
		return nil
	}

	rows := make([][]string, len(infos))
	var missing int
	for i, a := range infos {
		state := "present"
		if !a.Present {
			state = "missing"
			missing++
		}
		rows[i] = []string{a.Name, formatBytes(a.Size), state}
	}

	footer := fmt.Sprintf("%d assets, %d missing", len(infos), missing)
	row, err := outputWithInteractiveTable(format, proj.Title, footer, infos, []string{"NAME", "SIZE", "STATUS"}, rows)
	if err != nil {
		return err
	}
	if len(row) > 0 {
		fmt.Println(row[0])
	}
	return nil
}
