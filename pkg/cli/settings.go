package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getmockd/mirage/pkg/engine"
	"github.com/getmockd/mirage/pkg/logging"
)

const (
	settingsFileName = ".mirage"
	settingsFileType = "yaml"
	envPrefix        = "MIRAGE"

	defaultHost = "localhost"
	defaultPort = 4280
)

// Settings are the process settings of a CLI run.
type Settings struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Scenario    string `mapstructure:"scenario"`
	Timing      string `mapstructure:"timing"`
	Upstream    string `mapstructure:"upstream"`
	AdminPrefix string `mapstructure:"admin_prefix"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogFile     string `mapstructure:"log_file"`
}

// flagKeys maps flag names to settings keys.
var flagKeys = map[string]string{
	"host":         "host",
	"port":         "port",
	"timing":       "timing",
	"upstream":     "upstream",
	"admin-prefix": "admin_prefix",
	"log-level":    "log_level",
	"log-format":   "log_format",
	"log-file":     "log_file",
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	cmd.Flags().String("log-format", "text", "Log format: text or json")
	cmd.Flags().String("log-file", "", "Also write JSON logs to this file")
}

// loadSettings layers flags over MIRAGE_* environment variables over
// .mirage.yaml over defaults.
func loadSettings(cmd *cobra.Command) (*Settings, error) {
	v := viper.New()
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("admin_prefix", engine.DefaultAdminPrefix)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigName(settingsFileName)
	v.SetConfigType(settingsFileType)
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only consults keys viper already knows.
	for _, key := range []string{"scenario", "timing", "upstream", "log_file"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s.%s: %w", settingsFileName, settingsFileType, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// scenarioPath picks the positional argument over the scenario setting.
func (s *Settings) scenarioPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if s.Scenario != "" {
		return s.Scenario, nil
	}
	return "", errors.New("no scenario given: pass a file or directory, or set MIRAGE_SCENARIO")
}

// logger builds the process logger. The returned closer releases the log
// file, if any.
func (s *Settings) logger(stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logging.ParseFormat(s.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	cfg := logging.Config{Level: level, Format: format, Output: stderr}
	closer := func() {}
	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cfg.Files = []io.Writer{f}
		closer = func() { _ = f.Close() }
	}
	return logging.New(cfg), closer, nil
}
