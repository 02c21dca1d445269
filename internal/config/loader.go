package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, the environment and
// command-line flags.
type Loader struct{}

// envBindings maps setting keys to the environment variables that feed them.
// The first five keep the names the scenario tooling already exports.
var envBindings = []struct {
	key  string
	envs []string
}{
	{"base_url", []string{"API_BASE_URL", "FANLOAD_BASE_URL"}},
	{"root.email", []string{"SUPERUSER_EMAIL", "FANLOAD_ROOT_EMAIL"}},
	{"root.password", []string{"SUPERUSER_PASSWORD", "FANLOAD_ROOT_PASSWORD"}},
	{"manager.email", []string{"FAN_MANAGER_EMAIL", "FANLOAD_MANAGER_EMAIL"}},
	{"manager.password", []string{"FAN_MANAGER_PASSWORD", "FANLOAD_MANAGER_PASSWORD"}},
	{"page_size", []string{"FANLOAD_PAGE_SIZE"}},
	{"target_date", []string{"FANLOAD_TARGET_DATE"}},
	{"timeout", []string{"FANLOAD_TIMEOUT"}},
	{"fetch_rate", []string{"FANLOAD_FETCH_RATE"}},
	{"output_dir", []string{"FANLOAD_OUTPUT_DIR"}},
	{"load_tool.binary", []string{"FANLOAD_LOAD_TOOL"}},
	{"load_tool.scenario", []string{"FANLOAD_SCENARIO"}},
	{"tracing.endpoint", []string{"FANLOAD_TRACING_ENDPOINT"}},
	{"log.level", []string{"FANLOAD_LOG_LEVEL"}},
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFlags builds a Config from an already parsed flag set. The flag set
// must carry the flags registered by RegisterFlags.
func (Loader) LoadFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	for _, b := range envBindings {
		args := append([]string{b.key}, b.envs...)
		if err := cfgViper.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.key, err)
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	return cfg, nil
}

// applyConfigSettings applies settings from the config file and environment.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	strs := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.BaseURL, []string{"base_url", "target"}},
		{&cfg.Root.Email, []string{"root.email"}},
		{&cfg.Root.Password, []string{"root.password"}},
		{&cfg.Manager.Email, []string{"manager.email"}},
		{&cfg.Manager.Password, []string{"manager.password"}},
		{&cfg.TargetDate, []string{"target_date", "date"}},
		{&cfg.OutputDir, []string{"output_dir"}},
		{&cfg.Files.Schedules, []string{"files.schedules"}},
		{&cfg.Files.Fans, []string{"files.fans"}},
		{&cfg.Files.Videos, []string{"files.videos"}},
		{&cfg.StaleFile, []string{"stale_file"}},
		{&cfg.LoadTool.Binary, []string{"load_tool.binary"}},
		{&cfg.LoadTool.Scenario, []string{"load_tool.scenario"}},
		{&cfg.Tracing.Endpoint, []string{"tracing.endpoint"}},
		{&cfg.Tracing.Protocol, []string{"tracing.protocol"}},
		{&cfg.Tracing.ServiceName, []string{"tracing.service_name"}},
		{&cfg.Log.Level, []string{"log.level"}},
		{&cfg.Log.Format, []string{"log.format"}},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "page_size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("page_size: %w", err)
		}
		cfg.PageSize = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "fetch_rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("fetch_rate: %w", err)
		}
		cfg.FetchRate = val
	}

	if raw, ok := lookupSetting(settings, "load_tool.fail_on_error"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("load_tool.fail_on_error: %w", err)
		}
		cfg.LoadTool.FailOnError = val
	}

	if raw, ok := lookupSetting(settings, "tracing.insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("tracing.insecure: %w", err)
		}
		cfg.Tracing.Insecure = val
	}

	if raw, ok := lookupSetting(settings, "tracing.sample_rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("tracing.sample_rate: %w", err)
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
