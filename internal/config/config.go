package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultPageSize   = 10
	DefaultTargetDate = "2024-09-26"
	DefaultTimeout    = 30 * time.Second
	DateLayout        = "2006-01-02"
)

type Credentials struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Files names the three data files consumed by the scenario.
type Files struct {
	Schedules string `mapstructure:"schedules"`
	Fans      string `mapstructure:"fans"`
	Videos    string `mapstructure:"videos"`
}

// Names returns the file names in emission order.
func (f Files) Names() []string {
	return []string{f.Schedules, f.Fans, f.Videos}
}

type LoadToolConfig struct {
	Binary      string `mapstructure:"binary"`
	Scenario    string `mapstructure:"scenario"`
	FailOnError bool   `mapstructure:"fail_on_error"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

type Config struct {
	BaseURL    string         `mapstructure:"base_url"`
	Root       Credentials    `mapstructure:"root"`
	Manager    Credentials    `mapstructure:"manager"`
	PageSize   int            `mapstructure:"page_size"`
	TargetDate string         `mapstructure:"target_date"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	FetchRate  float64        `mapstructure:"fetch_rate"`
	OutputDir  string         `mapstructure:"output_dir"`
	Files      Files          `mapstructure:"files"`
	StaleFile  string         `mapstructure:"stale_file"`
	LoadTool   LoadToolConfig `mapstructure:"load_tool"`
	Tracing    TracingConfig  `mapstructure:"tracing"`
	Log        LogConfig      `mapstructure:"log"`
	ConfigFile string         `mapstructure:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		PageSize:   DefaultPageSize,
		TargetDate: DefaultTargetDate,
		Timeout:    DefaultTimeout,
		OutputDir:  ".",
		Files: Files{
			Schedules: "schedule-data.csv",
			Fans:      "fans-data.csv",
			Videos:    "videos-data.csv",
		},
		StaleFile: "tests-data.csv",
		LoadTool: LoadToolConfig{
			Binary:   "artillery",
			Scenario: "tests/load-test-config.yml",
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Path resolves a data file name against the output directory.
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks structural settings. Credentials are left to the API.
func (c Config) Validate() error {
	var issues []string

	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		issues = append(issues, "base_url is required (set API_BASE_URL or --base-url)")
	} else if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("base_url %q must be an absolute URL", base))
	}

	if c.PageSize < 1 {
		issues = append(issues, "page_size must be >= 1")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.FetchRate < 0 {
		issues = append(issues, "fetch_rate must be >= 0")
	}
	if _, err := time.Parse(DateLayout, c.TargetDate); err != nil {
		issues = append(issues, fmt.Sprintf("target_date %q must be YYYY-MM-DD", c.TargetDate))
	}

	issues = append(issues, validateFiles(c.Files, c.StaleFile)...)
	issues = append(issues, validateLoadTool(c.LoadTool)...)
	issues = append(issues, validateTracing(c.Tracing)...)
	issues = append(issues, validateLog(c.Log)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateFiles(files Files, stale string) []string {
	var issues []string
	seen := map[string]string{}
	for _, entry := range []struct{ key, name string }{
		{"files.schedules", files.Schedules},
		{"files.fans", files.Fans},
		{"files.videos", files.Videos},
	} {
		name := strings.TrimSpace(entry.name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("%s is required", entry.key))
			continue
		}
		if prev, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("%s duplicates %s (%q)", entry.key, prev, name))
			continue
		}
		seen[name] = entry.key
	}
	if prev, ok := seen[strings.TrimSpace(stale)]; ok {
		issues = append(issues, fmt.Sprintf("stale_file must differ from %s", prev))
	}
	return issues
}

func validateLoadTool(lt LoadToolConfig) []string {
	var issues []string
	if strings.TrimSpace(lt.Binary) == "" {
		issues = append(issues, "load_tool.binary is required")
	}
	if strings.TrimSpace(lt.Scenario) == "" {
		issues = append(issues, "load_tool.scenario is required")
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

func validateLog(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log.level %q is not supported", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be 'console' or 'json', got %q", l.Format))
	}
	return issues
}
