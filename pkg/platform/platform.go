package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmdc-io/pgduck/internal/server"
	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/engine"
	"github.com/tmdc-io/pgduck/pkg/engine/duckdb"
	"github.com/tmdc-io/pgduck/pkg/health"
	"github.com/tmdc-io/pgduck/pkg/provision"
	"github.com/tmdc-io/pgduck/pkg/storage"
	"github.com/tmdc-io/pgduck/pkg/storage/s3"
)

const (
	healthReadHeaderTimeout = 5 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

// Platform owns the engine, the provisioning pipeline and the servers.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle
	health    *health.Checker

	engine   engine.Engine
	pipeline *provision.Pipeline
	server   *server.Server
	probes   *healthServer

	report *provision.Report
}

// New validates the configuration, opens the engine and builds every
// component. Nothing is provisioned until Start.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
	}

	if err := p.initializeComponents(ctx, options); err != nil {
		_ = p.lifecycle.Stop(ctx)
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

// initializeComponents opens the engine, then builds the pipeline and server.
func (p *Platform) initializeComponents(ctx context.Context, opts *Options) error {
	if err := p.initEngine(ctx, opts); err != nil {
		return err
	}
	if err := p.initPipeline(opts); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:  p.config.Server.Addr(),
		Users: p.config.Server.Users,
	}, p.engine)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	p.server = srv
	p.lifecycle.RegisterCloser(srv)

	// probes answer while provisioning runs
	if p.config.Health.Enabled {
		p.probes = newHealthServer(p.config.Health.Address, p.health.Handler())
		p.lifecycle.RegisterComponent("health", p.probes)
	}
	p.lifecycle.OnStart("provisioning", p.provision)
	return nil
}

func (p *Platform) initEngine(ctx context.Context, opts *Options) error {
	if opts.Engine != nil {
		p.engine = opts.Engine
	} else {
		a, err := duckdb.Open(ctx, engineConfig(p.config.Engine))
		if err != nil {
			return fmt.Errorf("opening engine: %w", err)
		}
		p.engine = a
	}
	p.lifecycle.RegisterCloser(p.engine)
	return nil
}

func (p *Platform) initPipeline(opts *Options) error {
	resolver := opts.Resolver
	if resolver == nil {
		client, err := depot.NewClient(depot.ClientConfig{
			BaseURL: p.config.Depot.ServiceURL,
			APIKey:  p.config.Depot.APIKey,
			Timeout: p.config.Depot.Timeout,
		})
		if err != nil {
			return fmt.Errorf("creating depot client: %w", err)
		}
		p.lifecycle.RegisterCloser(client)
		resolver = client
	}

	secrets := opts.SecretStore
	if secrets == nil {
		store := depot.NewFileSecretStore(p.config.Depot.SecretDir)
		slog.Info("reading depot secrets", "dir", store.Dir())
		secrets = store
	}

	var pipelineOpts []provision.Option
	if prober := p.prober(opts); prober != nil {
		slog.Info("storage preflight enabled", "prober", prober.Name())
		pipelineOpts = append(pipelineOpts, provision.WithProber(prober))
	}

	pipeline, err := provision.NewPipeline(resolver, secrets, p.engine, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

func (p *Platform) prober(opts *Options) storage.Prober {
	if opts.Prober != nil {
		return opts.Prober
	}
	if p.config.Preflight.Enabled {
		return s3.NewDefault()
	}
	return nil
}

func engineConfig(cfg EngineConfig) duckdb.Config {
	allowUnsigned := cfg.AllowUnsignedExtensions != nil && *cfg.AllowUnsignedExtensions
	return duckdb.Config{
		Path:                    cfg.Path,
		AllowUnsignedExtensions: allowUnsigned,
		Extensions:              cfg.Extensions,
		LocalExtensions:         cfg.LocalExtensions,
		ExtensionRepository:     cfg.ExtensionRepository,
		BootstrapSQL:            cfg.BootstrapSQL,
	}
}

// provision runs the pipeline once. Resolution and validation failures are
// returned and stop the process; item failures only show in the report.
func (p *Platform) provision(ctx context.Context) error {
	p.health.SetProvisioning()

	report, err := p.pipeline.Run(ctx, p.config.Plan())
	p.report = report
	if report != nil {
		c := report.Counts()
		p.health.SetSummary(health.Summary{
			RunID:     report.RunID,
			Succeeded: c[provision.StatusSucceeded],
			Failed:    c[provision.StatusFailed],
			Skipped:   c[provision.StatusSkipped],
		})
	}
	if err != nil {
		return err
	}

	if failed := report.Failed(); failed > 0 {
		slog.Warn("provisioning finished with failures", "run_id", report.RunID, "failed", failed)
	}
	p.logCatalog(ctx)
	return nil
}

// logCatalog lists the views and secret names present after provisioning.
func (p *Platform) logCatalog(ctx context.Context) {
	views, err := p.engine.Views(ctx)
	if err != nil {
		slog.Warn("listing views failed", "error", err)
		return
	}
	secrets, err := p.engine.Secrets(ctx)
	if err != nil {
		slog.Warn("listing secrets failed", "error", err)
		return
	}

	viewNames := make([]string, len(views))
	for i, v := range views {
		viewNames[i] = v.Name
	}
	secretNames := make([]string, len(secrets))
	for i, s := range secrets {
		secretNames[i] = s.Name
	}
	slog.Info("provisioned catalog", "engine", p.engine.Name(), "views", viewNames, "secrets", secretNames)
}

// Start runs the startup steps, provisioning first.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Serve accepts PostgreSQL clients until ctx is done or a listener fails.
// A failing health server also stops it. Start must have succeeded.
func (p *Platform) Serve(ctx context.Context) error {
	if err := p.server.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return p.server.Serve(gctx)
	})

	if p.probes != nil && p.probes.Errors() != nil {
		errs := p.probes.Errors()
		g.Go(func() error {
			select {
			case err, ok := <-errs:
				if ok {
					return err
				}
				return nil
			case <-gctx.Done():
				return nil
			}
		})
	}

	p.health.SetReady()
	return g.Wait()
}

// Close drains the server and releases the engine and clients.
func (p *Platform) Close(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Config returns the configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Report returns the last provisioning report, or nil before Start.
func (p *Platform) Report() *provision.Report {
	return p.report
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// HealthAddr returns the health server address, or "" when disabled.
func (p *Platform) HealthAddr() string {
	if p.probes == nil {
		return ""
	}
	return p.probes.Addr()
}

// Addr returns the wire server address.
func (p *Platform) Addr() string {
	return p.server.Addr()
}
