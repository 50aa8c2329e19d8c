package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Resolve flags, config file and HTTPBRIDGE_* environment variables the same
way serve does, apply defaults and print the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eff, err := loadEffectiveConfig(cmd)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(eff.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", eff.Source)
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "write the configuration to this file instead of stdout")
	return cmd
}
