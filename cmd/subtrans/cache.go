package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the translation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show the translation cache provider and entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			translations, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer translations.Close()

			location := cfg.Cache.Path
			if cfg.Cache.Provider == "redis" {
				location = cfg.Cache.Redis.Address
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Provider", "Location", "Entries"},
				[][]string{{cfg.Cache.Provider, orDash(location), strconv.Itoa(translations.Len())}},
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			translations, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer translations.Close()
			if err := translations.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Translation cache cleared.")
			return nil
		},
	})

	return cmd
}
