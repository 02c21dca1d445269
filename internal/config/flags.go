package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all configuration flags as persistent flags of a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.PersistentFlags())
}

// configureFlags sets up all CLI flags on the provided flag set.
// Credentials are intentionally environment-only.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// API flags
	flags.String("base-url", "", "Base URL of the API under test (overrides API_BASE_URL)")
	flags.Int("page-size", DefaultPageSize, "page_size sent when listing fans and schedules")
	flags.String("date", DefaultTargetDate, "Schedule date (YYYY-MM-DD) used for the per-fan video lookup")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout for setup API calls (0 disables)")
	flags.Float64("fetch-rate", 0, "Max per-fan video requests per second (0 means unlimited)")

	// Output flags
	flags.String("output-dir", ".", "Directory the data files are written to")

	// Load tool flags
	flags.String("load-tool", "artillery", "Load generation binary to launch")
	flags.String("scenario", "tests/load-test-config.yml", "Scenario file passed to the load tool")
	flags.Bool("fail-on-load-error", false, "Exit with the load tool's exit code when it fails")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for setup spans (empty disables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: 'console' or 'json'")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("base-url") {
		val, err := fs.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(val)
	}
	if fs.Changed("page-size") {
		val, err := fs.GetInt("page-size")
		if err != nil {
			return err
		}
		cfg.PageSize = val
	}
	if fs.Changed("date") {
		val, err := fs.GetString("date")
		if err != nil {
			return err
		}
		cfg.TargetDate = strings.TrimSpace(val)
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("fetch-rate") {
		val, err := fs.GetFloat64("fetch-rate")
		if err != nil {
			return err
		}
		cfg.FetchRate = val
	}
	if fs.Changed("output-dir") {
		val, err := fs.GetString("output-dir")
		if err != nil {
			return err
		}
		cfg.OutputDir = strings.TrimSpace(val)
	}
	if fs.Changed("load-tool") {
		val, err := fs.GetString("load-tool")
		if err != nil {
			return err
		}
		cfg.LoadTool.Binary = strings.TrimSpace(val)
	}
	if fs.Changed("scenario") {
		val, err := fs.GetString("scenario")
		if err != nil {
			return err
		}
		cfg.LoadTool.Scenario = strings.TrimSpace(val)
	}
	if fs.Changed("fail-on-load-error") {
		val, err := fs.GetBool("fail-on-load-error")
		if err != nil {
			return err
		}
		cfg.LoadTool.FailOnError = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.Log.Level = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = val
	}
	return nil
}
