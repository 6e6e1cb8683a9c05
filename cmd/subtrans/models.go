package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the selectable models per provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog := modelCatalog(cfg)
			providers := make([]string, 0, len(catalog))
			for p := range catalog {
				if len(args) == 0 || args[0] == p {
					providers = append(providers, p)
				}
			}
			if len(providers) == 0 {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			sort.Strings(providers)

			current := cfg.Translation.Model
			var rows [][]string
			for _, p := range providers {
				for _, m := range catalog[p] {
					marker := ""
					if p == cfg.Translation.Provider && m == current {
						marker = "*"
					}
					rows = append(rows, []string{p, m, marker})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Model", "Default"}, rows, nil))
			return nil
		},
	}
}
