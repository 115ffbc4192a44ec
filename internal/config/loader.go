package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".scanforge"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for scanforge settings.
const envPrefix = "SCANFORGE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("results_dir", DefaultResultsDir)
	viperCfg.SetDefault("capture", DefaultCapture)
	viperCfg.SetDefault("report", DefaultReport)
	viperCfg.SetDefault("quiet", false)
	viperCfg.SetDefault("merge", false)
	viperCfg.SetDefault("fail_on_issue", false)
	viperCfg.SetDefault("fail_on_issue_exit_code", DefaultFailOnIssueExitCode)
	viperCfg.SetDefault("force_integration", "")
	viperCfg.SetDefault("generated_classes", "")
	viperCfg.SetDefault("compilation_database", []string{})
	viperCfg.SetDefault("compilation_database_escaped", []string{})
	viperCfg.SetDefault("xcpretty", false)
	viperCfg.SetDefault("cache_capture", false)
	viperCfg.SetDefault("export_changed_functions", false)

	viperCfg.SetDefault("buck.mode", "")
	viperCfg.SetDefault("buck.cdb_all_deps", false)
	viperCfg.SetDefault("buck.cdb_deps_depth", 0)

	viperCfg.SetDefault("changed_files.index", "")
	viperCfg.SetDefault("changed_files.git_base", "")
	viperCfg.SetDefault("changed_files.git", false)

	viperCfg.SetDefault("analyzer.command", "")
	viperCfg.SetDefault("analyzer.args", []string{})
	viperCfg.SetDefault("analyzer.whole_program_concurrency", false)
	viperCfg.SetDefault("analyzer.report_console_limit", DefaultReportConsoleLimit)

	viperCfg.SetDefault("log.format", DefaultLogFormat)
	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.file", DefaultLogToFile)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
	viperCfg.SetDefault("telemetry.diagnostics_addr", "")
}
