package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"httpbridge/pkg/config"
)

type buildInfo struct {
	version   string
	commit    string
	buildDate string
}

// NewRootCmd builds the httpbridge command tree. Without a subcommand it
// serves.
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	info := buildInfo{version: version, commit: commit, buildDate: buildDate}

	rootCmd := &cobra.Command{
		Use:   "httpbridge",
		Short: "Bridge fasthttp requests to generic request/response messages",
		Long: `httpbridge serves HTTP through fasthttp and converts every request into a
generic server request, hands it to the built-in echo application and writes
the generic response back through the engine.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, info)
		},
	}

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("addr", ":8080", "HTTP listen address")
	rootCmd.PersistentFlags().StringP("config", "c", "./config.yaml", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newServeCmd(info), newConfigCmd(), newBenchCmd())
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute(version, commit, buildDate string) {
	if err := NewRootCmd(version, commit, buildDate).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEffectiveConfig resolves flags, config file and environment into a
// validated configuration.
func loadEffectiveConfig(cmd *cobra.Command) (config.EffectiveConfigResult, error) {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags := config.Flags{Set: map[string]bool{}}
	pf := cmd.Flags()
	flags.Addr, _ = pf.GetString("addr")
	flags.Config, _ = pf.GetString("config")
	flags.LogLevel, _ = pf.GetString("log-level")
	for _, name := range []string{"addr", "config", "log-level"} {
		flags.Set[name] = pf.Changed(name)
	}

	var eff config.EffectiveConfigResult
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		return eff, fmt.Errorf("failed to load config file: %w", err)
	}
	envCfg, envRes, err := config.ParseConfigEnvs()
	if err != nil {
		return eff, fmt.Errorf("invalid environment: %w", err)
	}
	eff, err = config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		return eff, fmt.Errorf("failed to build effective config: %w", err)
	}
	if err := config.ValidateConfig(&eff); err != nil {
		return eff, fmt.Errorf("invalid configuration: %w", err)
	}
	return eff, nil
}
