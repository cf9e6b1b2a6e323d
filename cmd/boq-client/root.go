package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/config"
	"github.com/cuongbtq/boq-ai/shared/logger"
)

const defaultConfigPath = "configs/boq-client/config.yaml"

// app carries what every subcommand needs once the root pre-run has loaded it
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logger.Logger
	api    *client.Client
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	cmd := &cobra.Command{
		Use:          "boq-client",
		Short:        "Submit drawings for BoQ takeoff, price the results and export spreadsheets",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			return a.load()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.logger != nil {
				return a.logger.Close()
			}
			return nil
		},
	}

	configPath := os.Getenv("BOQ_CLIENT_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", configPath, "Path to configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		newSubmitCmd(a),
		newPriceCmd(a),
		newCatalogCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

func (a *app) load() error {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateClientConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	output := cfg.Logging.Output
	if output == "" || output == "stdout" {
		// stdout is reserved for command output
		output = "stderr"
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        level,
		Format:       cfg.Logging.Format,
		Output:       output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.Kitchen,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = appLogger
	a.api = client.New(cfg.Client.BaseURL, cfg.Client.RequestTimeout, appLogger.Logger)
	return nil
}
