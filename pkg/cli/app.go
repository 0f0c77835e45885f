package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nimburion/docroute/internal/notes"
	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/controller"
	"github.com/nimburion/docroute/pkg/dispatch"
	"github.com/nimburion/docroute/pkg/document"
	"github.com/nimburion/docroute/pkg/health"
	"github.com/nimburion/docroute/pkg/middleware/cors"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/route"
	"github.com/nimburion/docroute/pkg/server"
	"github.com/nimburion/docroute/pkg/store/mongodb"
	"github.com/nimburion/docroute/pkg/version"
	"github.com/nimburion/docroute/pkg/worker"
)

// App holds the wired components of one docroute process.
type App struct {
	cfg *config.Config
	log logger.Logger

	tracer  *tracing.TracerProvider
	pool    *mongodb.Pool
	queue   *worker.RedisQueue
	notes   *notes.Handlers
	health  *health.Registry
	metrics *metrics.Registry
}

// NewApp connects the process dependencies described by cfg. MongoDB is
// reached lazily through the pool; Redis is dialed now when workers are
// enabled.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(cfg.Service.Name).Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		tracer:  tracer,
		health:  health.NewRegistry(),
		metrics: metrics.NewRegistry(),
		pool: mongodb.NewPool(mongodb.PoolConfig{
			ConnectTimeout:   cfg.Database.ConnectTimeout,
			OperationTimeout: cfg.Database.OperationTimeout,
		}, log),
	}
	a.health.Add(health.Dependency{Name: "mongodb", Target: health.CheckFunc(func(ctx context.Context) error {
		return a.pool.CheckURL(ctx, cfg.Database.URL)
	})})

	opts := []notes.Option{notes.WithLogger(log), notes.WithFunctions(a.functions())}
	if cfg.Worker.Enabled() {
		q, err := worker.NewRedisQueue(worker.RedisQueueConfig{URL: cfg.Worker.RedisURL}, log)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("connect worker queue: %w", err)
		}
		a.queue = q
		// Note writes still succeed without Redis; only summaries lag.
		a.health.Add(health.Dependency{Name: "redis", Target: q, Optional: true})

		sched, err := worker.NewScheduler(q, cfg.Worker.Queue, log)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		opts = append(opts, notes.WithScheduler(sched))
	}

	exec, err := document.NewMongoExecutor(a.pool, cfg.Database.URL)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if a.notes, err = notes.NewHandlers(exec, opts...); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// functions prefers map/reduce sources on disk so they can be edited
// without a rebuild.
func (a *App) functions() fs.FS {
	dir := a.cfg.Database.FunctionsDir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		a.log.Debug("loading database functions from disk", "dir", dir)
		return os.DirFS(dir)
	}
	return notes.Functions()
}

// Routes loads the configured route table, falling back to the built-in one
// when the file does not exist.
func (a *App) Routes() (*route.Table, error) {
	return loadRoutes(a.cfg.Routes.File, a.log)
}

func loadRoutes(path string, log logger.Logger) (*route.Table, error) {
	table, err := route.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("routes file not found, using built-in routes", "file", path)
		return notes.Routes()
	}
	return table, err
}

// Dispatcher builds the request dispatcher over the route table.
func (a *App) Dispatcher() (*dispatch.Dispatcher, error) {
	table, err := a.Routes()
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	reg := dispatch.NewRegistry()
	if err := a.notes.Register(reg); err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}
	return dispatch.New(table, reg,
		dispatch.WithLogger(a.log),
		dispatch.WithNotFound(controller.NotFound),
		dispatch.WithScriptName(a.cfg.HTTP.ScriptName),
		dispatch.WithCORS(cors.Config{
			AllowOrigin:               a.cfg.CORS.AllowOrigin,
			AllowMethods:              a.cfg.CORS.AllowMethods,
			MaxAge:                    a.cfg.CORS.MaxAge,
			OptionsResponseStatusCode: a.cfg.CORS.OptionsResponseStatusCode,
		}),
	)
}

// Serve runs the public server, and the management server when enabled,
// until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	d, err := a.Dispatcher()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	public := server.NewPublicServer(a.cfg.HTTP, d, a.log)
	g.Go(func() error { return public.Start(ctx) })

	if a.cfg.Management.Enabled {
		mgmt := server.NewManagementServer(a.cfg.Management, a.health, a.metrics, a.log)
		g.Go(func() error { return mgmt.Start(ctx) })
	}

	a.log.Info("docroute started",
		"version", version.Current(a.cfg.Service.Name).String(),
		"routes", a.cfg.Routes.File,
		"workers", a.cfg.Worker.Enabled(),
	)
	return g.Wait()
}

// RunWorkers consumes the worker queue until ctx is cancelled.
func (a *App) RunWorkers(ctx context.Context) error {
	if a.queue == nil {
		return errors.New("worker queue is not configured (set worker.redis_url)")
	}
	runner, err := worker.NewRunner(a.queue, worker.RunnerConfig{
		Queue:       a.cfg.Worker.Queue,
		PollTimeout: a.cfg.Worker.PollTimeout,
		Concurrency: a.cfg.Worker.Concurrency,
	}, a.log)
	if err != nil {
		return err
	}
	if err := notes.RegisterWorkers(runner, a.notes.Store()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })
	if a.cfg.Management.Enabled {
		mgmt := server.NewManagementServer(a.cfg.Management, a.health, a.metrics, a.log)
		g.Go(func() error { return mgmt.Start(ctx) })
	}
	a.log.Info("docroute worker started", "queue", a.cfg.Worker.Queue, "concurrency", a.cfg.Worker.Concurrency)
	return g.Wait()
}

// Close releases every connection the app opened.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
