// Package setup runs the preparation sequence of a load test: log in, read
// the reference data, write the data files and launch the load tool.
package setup

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/fanload/internal/api"
	"github.com/torosent/fanload/internal/auth"
	"github.com/torosent/fanload/internal/config"
	"github.com/torosent/fanload/internal/datafile"
	"github.com/torosent/fanload/internal/httpclient"
	"github.com/torosent/fanload/internal/loadtool"
	"github.com/torosent/fanload/internal/metrics"
	"github.com/torosent/fanload/internal/scenario"
	"github.com/torosent/fanload/internal/seed"
	"github.com/torosent/fanload/internal/tracing"
)

// Resource name the login calls are recorded under.
const resourceLogin = "login"

// LoadRunner launches the load tool against target.
type LoadRunner interface {
	Run(ctx context.Context, target string) error
}

// Result describes a completed setup run.
type Result struct {
	RunID     string
	Fans      int
	Schedules int
	Files     []string
	Warnings  []string
	Metrics   []metrics.Stats
}

// Driver executes the setup sequence. A Driver is good for one Run.
type Driver struct {
	cfg        *config.Config
	logger     *zap.Logger
	tracing    *tracing.Provider
	collector  *metrics.Collector
	httpClient *http.Client
	runner     LoadRunner
	stdout     io.Writer
	stderr     io.Writer
	hooks      []string
	quantity   func() int
	runID      func() string
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func WithTracing(p *tracing.Provider) Option {
	return func(d *Driver) { d.tracing = p }
}

func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) { d.httpClient = c }
}

// WithRunner replaces the load tool process.
func WithRunner(r LoadRunner) Option {
	return func(d *Driver) { d.runner = r }
}

// WithOutput sets where the load tool's output lines are forwarded.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Driver) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithHooks names the hooks available to the scenario for preflight checks.
func WithHooks(names []string) Option {
	return func(d *Driver) { d.hooks = names }
}

// WithQuantity replaces the random media quantity source.
func WithQuantity(fn func() int) Option {
	return func(d *Driver) { d.quantity = fn }
}

// WithRunID replaces the run ID generator.
func WithRunID(fn func() string) Option {
	return func(d *Driver) { d.runID = fn }
}

// New creates a Driver for cfg.
func New(cfg *config.Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:       cfg,
		logger:    zap.NewNop(),
		collector: metrics.NewCollector(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		runID:     func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpClient == nil {
		d.httpClient = httpclient.NewClient(cfg.Timeout)
	}
	return d
}

// Run executes every step in order and stops at the first failure. The stale
// data file is removed on the way out whatever the outcome.
func (d *Driver) Run(ctx context.Context) (res *Result, err error) {
	runID := d.runID()
	log := d.logger.With(zap.String("run_id", runID))
	tracer := d.tracing.Tracer()
	res = &Result{RunID: runID}

	ctx, span := tracing.StartPhaseSpan(ctx, tracer, "run", attribute.String("fanload.run_id", runID))
	defer func() {
		d.cleanup(log)
		res.Metrics = d.collector.Stats()
		d.logSummary(log, res.Metrics)
		if err != nil {
			log.Error(Message(err), zap.Error(err))
		}
		tracing.EndSpan(span, err)
	}()

	builder, err := httpclient.NewRequestBuilder(d.cfg.BaseURL)
	if err != nil {
		return res, err
	}

	root := auth.NewLoginProvider(auth.RoleRoot, builder, d.httpClient, d.cfg.Root.Email, d.cfg.Root.Password)
	defer root.Close()
	rootToken, err := d.login(ctx, root)
	if err != nil {
		return res, err
	}
	log.Info("login ok", zap.String("role", string(auth.RoleRoot)))

	client := api.NewClient(builder.WithAuth(auth.NewTokenProvider(auth.RoleRoot, rootToken)), d.httpClient,
		api.WithCollector(d.collector),
		api.WithTracing(d.tracing),
		api.WithPageSize(d.cfg.PageSize),
	)

	var fans []api.Fan
	err = d.phase(ctx, "fetch_fans", func(ctx context.Context) error {
		var ferr error
		fans, ferr = client.Fans(ctx)
		if ferr != nil {
			return &FetchError{Resource: api.ResourceFans, Err: ferr}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Fans = len(fans)
	log.Info("fans fetched", zap.String("resource", api.ResourceFans), zap.Int("count", len(fans)))

	var schedules []api.Schedule
	err = d.phase(ctx, "fetch_schedules", func(ctx context.Context) error {
		var ferr error
		schedules, ferr = client.Schedules(ctx)
		if ferr != nil {
			return &FetchError{Resource: api.ResourceSchedules, Err: ferr}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Schedules = len(schedules)
	log.Info("schedules fetched", zap.String("resource", api.ResourceSchedules), zap.Int("count", len(schedules)))

	var media []seed.MediaAssociation
	err = d.phase(ctx, "fetch_videos", func(ctx context.Context) error {
		fetcher := seed.NewFetcher(client, seed.WithRate(d.cfg.FetchRate), seed.WithQuantity(d.quantity))
		var ferr error
		media, ferr = fetcher.Fetch(ctx, fans, d.cfg.TargetDate)
		if ferr != nil {
			return &FetchError{Resource: api.ResourceVideos, Err: ferr}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	log.Info("videos fetched", zap.String("resource", api.ResourceVideos), zap.Int("fans", len(media)), zap.String("date", d.cfg.TargetDate))

	manager := auth.NewLoginProvider(auth.RoleManager, builder, d.httpClient, d.cfg.Manager.Email, d.cfg.Manager.Password)
	managerToken, err := d.login(ctx, manager)
	if err != nil {
		return res, err
	}
	log.Info("login ok", zap.String("role", string(auth.RoleManager)))

	err = d.phase(ctx, "emit_files", func(ctx context.Context) error {
		set, berr := datafile.Build(managerToken, fans, schedules, media)
		if berr != nil {
			return &EmitError{Err: berr}
		}
		paths, werr := datafile.NewWriter(d.cfg.OutputDir, d.cfg.Files).Write(ctx, set)
		res.Files = paths
		if werr != nil {
			return &EmitError{Err: werr}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	log.Info("data files written", zap.Strings("files", res.Files))

	res.Warnings = d.preflight(log)

	err = d.phase(ctx, "load_tool", func(ctx context.Context) error {
		if rerr := d.loadRunner(runID).Run(ctx, d.cfg.BaseURL); rerr != nil {
			return &LoadToolError{Err: rerr}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	log.Info("Teste de carga concluído com sucesso.")
	return res, nil
}

func (d *Driver) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartPhaseSpan(ctx, d.tracing.Tracer(), name)
	err := fn(ctx)
	tracing.EndSpan(span, err)
	return err
}

// login obtains the token of p once. Later requests carry it as a static
// bearer so a read failure is never reported as a login failure.
func (d *Driver) login(ctx context.Context, p *auth.LoginProvider) (string, error) {
	var token string
	err := d.phase(ctx, "login_"+string(p.Role()), func(ctx context.Context) error {
		start := time.Now()
		var lerr error
		token, lerr = p.Token(ctx)
		d.collector.RecordRequest(resourceLogin, time.Since(start), lerr)
		return lerr
	})
	return token, err
}

func (d *Driver) preflight(log *zap.Logger) []string {
	files := d.cfg.Files.Names()
	sc, warnings, err := scenario.Preflight(d.cfg.LoadTool.Scenario, files, d.hooks)
	if err != nil {
		log.Warn("scenario not checked", zap.String("scenario", d.cfg.LoadTool.Scenario), zap.Error(err))
		return []string{err.Error()}
	}
	log.Debug("scenario checked", zap.String("scenario", sc.Path), zap.String("processor", sc.Config.Processor))
	for _, w := range warnings {
		log.Warn("scenario mismatch", zap.String("scenario", d.cfg.LoadTool.Scenario), zap.String("detail", w))
	}
	return warnings
}

func (d *Driver) loadRunner(runID string) LoadRunner {
	if d.runner != nil {
		return d.runner
	}
	return &loadtool.Runner{
		Binary:   d.cfg.LoadTool.Binary,
		Scenario: d.cfg.LoadTool.Scenario,
		Env:      []string{"FANLOAD_RUN_ID=" + runID},
		Stdout:   d.stdout,
		Stderr:   d.stderr,
	}
}

func (d *Driver) cleanup(log *zap.Logger) {
	removed, err := datafile.Cleanup(d.cfg.OutputDir, d.cfg.StaleFile)
	if err != nil {
		log.Warn("stale data file not removed", zap.String("file", d.cfg.StaleFile), zap.Error(err))
		return
	}
	if removed {
		log.Debug("stale data file removed", zap.String("file", d.cfg.StaleFile))
	}
}

func (d *Driver) logSummary(log *zap.Logger, stats []metrics.Stats) {
	for _, s := range stats {
		log.Info("api latency",
			zap.String("resource", s.Resource),
			zap.Int64("total", s.Total),
			zap.Int64("failures", s.Failures),
			zap.Duration("p50", s.P50Latency),
			zap.Duration("p99", s.P99Latency),
			zap.Duration("max", s.MaxLatency),
		)
	}
	log.Info("setup finished", zap.Duration("elapsed", d.collector.Elapsed()))
}
