package cmd

import (
	"fmt"
	"strings"

	"github.com/habedi/gymctl/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(
		configShowCmd(st),
		configSetCmd(st),
	)
	return cmd
}

func configShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := st.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			cmd.Printf("# %s\n%s", path, data)
			return nil
		},
	}
}

func configSetCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a configuration value",
		Long:  "Change a configuration value and save the file. Keys: " + strings.Join(config.Keys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := st.resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return validationErr(err)
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			cmd.Printf("%s set to %s in %s\n", args[0], args[1], path)
			return nil
		},
	}
}
