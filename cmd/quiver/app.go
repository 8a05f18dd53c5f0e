package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/bridge"
	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/config"
	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/metrics"
	"github.com/ajitpratap0/quiver/pkg/mmap"
	"github.com/ajitpratap0/quiver/pkg/observability"
)

// app is the state shared by every subcommand once the configuration has
// been loaded.
type app struct {
	configFile  string
	metricsAddr string
	viper       *viper.Viper

	cfg       *config.Config
	log       *zap.Logger
	collector *metrics.Collector
	server    *http.Server
	store     *bridge.Store
	mem       memory.Allocator
	inputs    []*mmap.File
}

// setup loads configuration and builds the store. Flags bound to viper keys
// override environment variables and the config file.
func (a *app) setup() error {
	cfg, err := config.LoadWithViper(a.configFile, a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return errors.Wrap(err, errors.CodeValidation, "failed to initialize logger")
	}
	a.log = logger.Get().With(zap.String("component", "quiver-cli"))

	tc := observability.DefaultTracingConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.ExporterType = cfg.Tracing.Exporter
	tc.SamplingRate = cfg.Tracing.SamplingRate
	tc.ServiceName = cfg.Tracing.ServiceName
	tc.ServiceVersion = version
	tc.Writer = os.Stderr
	if cfg.Tracing.ServiceName == "" {
		tc.ServiceName = "quiver"
	}
	if err := observability.Initialize(tc); err != nil {
		return errors.Wrap(err, errors.CodeValidation, "failed to initialize tracing")
	}

	if a.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = a.metricsAddr
	}
	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace)
		if cfg.Metrics.Addr != "" {
			a.serveMetrics(cfg.Metrics.Addr)
		}
	}

	a.mem = memory.NewGoAllocator()
	if cfg.Engine.Allocator == "checked" {
		a.mem = memory.NewCheckedAllocator(memory.NewGoAllocator())
	}

	eng, err := newEngine(cfg, a.mem, a.log, a.collector)
	if err != nil {
		return err
	}

	opts := []bridge.Option{
		bridge.WithEngine(eng),
		bridge.WithAllocator(a.mem),
		bridge.WithLogger(a.log),
		bridge.WithStrictSniffing(cfg.Sniffer.Strict),
	}
	if a.collector != nil {
		opts = append(opts, bridge.WithObserver(a.collector))
	}
	a.store = bridge.NewStore(opts...)
	return nil
}

func newEngine(cfg *config.Config, mem memory.Allocator, log *zap.Logger, c *metrics.Collector) (*engine.ArrowEngine, error) {
	codec, err := compression.ParseAlgorithm(cfg.Engine.ParquetCodec)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "engine.parquet_codec")
	}

	opts := []engine.Option{
		engine.WithAllocator(mem),
		engine.WithLogger(log),
		engine.WithParquetCodec(codec),
		engine.WithRowGroupLength(cfg.Engine.RowGroupLength),
		engine.WithMaxBatchRows(cfg.Engine.MaxBatchRows),
	}
	if c != nil {
		opts = append(opts, engine.WithObserver(c))
	}
	return engine.New(opts...), nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info("serving metrics", zap.String("addr", addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// close frees every handle and flushes telemetry.
func (a *app) close() {
	if a.store != nil {
		a.store.ClearAll()
	}
	for _, f := range a.inputs {
		_ = f.Close()
	}
	a.inputs = nil
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	_ = observability.Shutdown(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
}
