package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bloomstate/internal/paths"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize bloom configuration",
		Long:  "Create the configuration and data directories and write a default config.yaml.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return exitError(exitSysError, err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return exitError(exitSysError, fmt.Errorf("create config directory: %w", err))
	}

	cfg := current.cfg
	if flags.dataDir != "" {
		cfg.DataDir = current.dataDir
	}
	configPath := paths.ConfigFile(configDir)
	written, err := writeConfigIfMissing(configPath, cfg)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("write config: %w", err))
	}

	if err := os.MkdirAll(current.dataDir, 0o755); err != nil {
		return exitError(exitSysError, fmt.Errorf("create data directory: %w", err))
	}

	current.log.Info("initialized",
		zap.String("config", configPath),
		zap.Bool("config_written", written),
		zap.String("data_dir", current.dataDir))
	fmt.Fprintf(cmd.OutOrStdout(), "config: %s\ndata: %s\n", configPath, current.dataDir)
	return nil
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(path string, cfg settings) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
