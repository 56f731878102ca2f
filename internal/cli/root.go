// Package cli implements the bloom command-line interface: static checking of
// HCL declaration files against a fresh lattice catalog.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

var flags rootFlags

// session is what PersistentPreRunE resolves for the running subcommand.
type session struct {
	cfg     settings
	dataDir string
	log     *zap.Logger
}

var current session

// NewRootCmd creates the top-level "bloom" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}
	current = session{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "bloom",
		Short: "Collection and lattice declarations for Bloom-style programs",
		Long: "bloom checks collection and lattice declarations: names, schemas, storage\n" +
			"backends and the monotonicity classification of every lattice kind.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = current.log.Sync()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory for sync stores (default: .bloom-db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: warn)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newKindsCmd())

	return root
}

// setup loads config.yaml, resolves the data directory and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve config directory: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return exitError(exitSysError, err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve data directory: %w", err))
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return exitError(exitUserError, err)
	}
	current = session{cfg: cfg, dataDir: dataDir, log: log}
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// codedError carries the process exit code for a failed command.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError tags err with the exit code Execute should use.
func exitError(code int, err error) error {
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}
