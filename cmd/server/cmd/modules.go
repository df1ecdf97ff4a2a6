package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eventdeck/server/internal/domain/modules"
)

func newModulesCommand(flags *globalFlags) *cobra.Command {
	var (
		category   string
		all        bool
		asJSON     bool
		catalogArg string
	)
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the module catalog",
		Long: `Print the modules events can attach. The embedded seed catalog is used
unless MODULES_CATALOG_PATH (or --catalog) points at another file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalogArg
			if path == "" {
				cfg, err := flags.loadConfig()
				if err != nil {
					return fmt.Errorf("config error: %w", err)
				}
				path = cfg.Modules.CatalogPath
			}

			catalog, err := modules.Load(path)
			if err != nil {
				return err
			}
			views := catalog.List(modules.ListFilter{Category: category, ActiveOnly: !all})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tVERSION\tACTIVE")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", v.ID, v.Name, v.Category, v.Version, v.IsActive)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list modules in this category")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive modules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&catalogArg, "catalog", "", "catalog file to read instead of the configured one")
	return cmd
}
