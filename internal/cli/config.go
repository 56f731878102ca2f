package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/bloomstate/internal/paths"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyDataDir          = "data_dir"
	cfgKeyLogLevel         = "log_level"
	cfgKeyStrictCollisions = "strict_collisions"

	defaultLogLevel = "warn"
)

// settings is the decoded config.yaml.
type settings struct {
	DataDir          string `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	LogLevel         string `yaml:"log_level" mapstructure:"log_level"`
	StrictCollisions bool   `yaml:"strict_collisions" mapstructure:"strict_collisions"`
}

// loadConfig reads config.yaml from configDir. A missing file yields the
// defaults.
func loadConfig(configDir string) (settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyStrictCollisions, false)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	return settings{
		DataDir:          v.GetString(cfgKeyDataDir),
		LogLevel:         v.GetString(cfgKeyLogLevel),
		StrictCollisions: v.GetBool(cfgKeyStrictCollisions),
	}, nil
}

func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}

func resolveDataDir(cfg settings) (string, error) {
	return paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
}

// newLogger builds a console logger writing to stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.Sampling = nil
	return zcfg.Build()
}
