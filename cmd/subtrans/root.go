package main

import (
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Belphemur/SubTranslate/internal/config"
)

type commandContext struct {
	configFlag *string
	envFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		env := strings.TrimSpace(*c.envFlag)
		if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = err
			return
		}
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			// Reload so variables from the .env file are picked up.
			c.config, c.configErr = config.LoadConfig()
			return
		}
		c.config, c.configErr = config.LoadConfigFile(path)
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag, envFlag string
	ctx := &commandContext{configFlag: &configFlag, envFlag: &envFlag}

	rootCmd := &cobra.Command{
		Use:           "subtrans",
		Short:         "Translate subtitle files with generative language models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			config.ConfigureLogging(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", ".env", "Environment file loaded before the configuration")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newTranslateCommand(ctx))
	rootCmd.AddCommand(newMatchCommand())
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))

	return rootCmd
}
