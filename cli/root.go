package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/compozy/plansync/cli/helpers"
	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
)

type configKey struct{}

// RootCmd builds the plansync command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plansync",
		Short:         "Turn tasks into scheduled calendar plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCommand(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "plansync.yaml", "Path to the config file")
	flags.String("env-file", ".env", "Path to an environment file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.StringP("output", "o", string(helpers.OutputFormatText), "Output format (text, json)")

	root.AddCommand(
		serveCmd(),
		submitCmd(),
		statusCmd(),
		listCmd(),
		retryCmd(),
		watchCmd(),
		migrateCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the root command and prints failures in the selected format.
func Execute() int {
	cmd := RootCmd()
	executed, err := cmd.ExecuteC()
	if err == nil {
		return 0
	}
	format := helpers.OutputFormatText
	if executed != nil {
		if v, ferr := executed.Flags().GetString("output"); ferr == nil {
			if f, perr := helpers.ParseOutputFormat(v); perr == nil {
				format = f
			}
		}
	}
	fmt.Fprintln(os.Stderr, helpers.FormatError(err, format))
	return 1
}

func setupCommand(cmd *cobra.Command) error {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.NewService().Load(cmd.Context(), config.NewYAMLProvider(configPath), cliOverrides(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if level == "" {
		level = cfg.Runtime.LogLevel
	}
	log := logger.SetupLogger(level, logJSON || cfg.Runtime.LogJSON, logSource)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = context.WithValue(ctx, configKey{}, cfg)
	cmd.SetContext(ctx)
	return nil
}

// cliOverrides maps explicitly set command flags onto config keys.
func cliOverrides(cmd *cobra.Command) config.Source {
	overrides := map[string]any{}
	bind := func(flag, key string) {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			return
		}
		switch f.Value.Type() {
		case "int":
			v, _ := cmd.Flags().GetInt(flag)
			overrides[key] = v
		case "bool":
			v, _ := cmd.Flags().GetBool(flag)
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	}
	bind("host", "server.host")
	bind("port", "server.port")
	bind("db-driver", "database.driver")
	bind("db-path", "database.path")
	bind("temporal", "temporal.enabled")
	return config.NewCLIProvider(overrides)
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration was not loaded")
	}
	return cfg, nil
}

func outputFormat(cmd *cobra.Command) (helpers.OutputFormat, error) {
	v, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return helpers.ParseOutputFormat(v)
}
