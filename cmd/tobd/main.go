package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tob/internal/core"
	"tob/internal/csr"
	"tob/internal/obs"
	"tob/internal/ops"
	"tob/internal/publish"
	"tob/internal/recorder"
	"tob/internal/risk"
	"tob/internal/snapshot"
	"tob/internal/store"
	"tob/internal/symbol"
	"tob/pkg/conn"
	"tob/pkg/uds"
)

func main() {
	configPath := flag.String("config", "tobd.yaml", "Path to YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if cfg.Pyroscope.Server != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Pyroscope.AppName,
			ServerAddress:   cfg.Pyroscope.Server,
			Tags: map[string]string{
				"universe": strconv.Itoa(cfg.Core.Universe),
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if err := obs.Register(registry, metrics); err != nil {
		log.Fatalf("metrics register failed: %v", err)
	}

	table := symbol.NewTable(cfg.Core.Universe)
	riskCfg, err := loadRegisters(table, cfg)
	if err != nil {
		log.Fatalf("register load failed: %v", err)
	}
	logs.Infof("symbols loaded: %d, risk: %+v", table.Len(), riskCfg)

	engine, err := core.New(cfg.Core, table, metrics)
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	session := engine.Session().String()

	var lastSeq uint32
	if cfg.Snapshot.Restore {
		lastSeq, err = restore(ctx, engine, cfg)
		if err != nil {
			log.Fatalf("restore failed: %v", err)
		}
	}

	var exporter *recorder.Writer
	if cfg.Export != nil {
		exporter, err = recorder.NewWriter(*cfg.Export)
		if err != nil {
			log.Fatalf("export init failed: %v", err)
		}
		if err := exporter.Start(context.Background()); err != nil {
			log.Fatalf("export start failed: %v", err)
		}
	}

	var publisher *publish.Publisher
	if cfg.NATS != nil {
		publisher, err = publish.Connect(*cfg.NATS, session, metrics)
		if err != nil {
			log.Fatalf("nats connect failed: %v", err)
		}
	}

	var books *store.Store
	if cfg.Postgres != nil {
		client, err := conn.New(*cfg.Postgres)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer func() {
			_ = client.Close()
		}()
		books, err = store.New(client.DB())
		if err != nil {
			log.Fatalf("store init failed: %v", err)
		}
		if err := books.Migrate(ctx); err != nil {
			log.Fatalf("store migrate failed: %v", err)
		}
	}

	if err := engine.Start(); err != nil {
		log.Fatalf("engine start failed: %v", err)
	}

	out := &sink{
		gate:    risk.NewGate(riskCfg, risk.NewReferences(cfg.Prices)),
		metrics: metrics,
	}
	if exporter != nil {
		out.exporter = exporter
	}
	if publisher != nil {
		out.publisher = publisher
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Stop closes the mailbox once the shards are drained.
		engine.Mailbox().Run(context.Background(), out.handle)
	}()

	in := newIngress(engine, lastSeq, metrics)
	server, err := uds.NewServer(cfg.UDSPath)
	if err != nil {
		log.Fatalf("uds init failed: %v", err)
	}
	if err := server.Listen(); err != nil {
		log.Fatalf("uds listen failed: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("metrics server, err: %+v", err)
		}
	}()

	go obs.NewReporter(metrics).Run(ctx, cfg.Metrics.ReportInterval)

	snapper := &snapshotter{
		arena:   engine.Arena(),
		names:   table,
		session: session,
		lastSeq: in.LastSeq,
		path:    cfg.Snapshot.Path,
	}
	if books != nil {
		snapper.store = books
	}
	if snapper.enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapper.run(ctx, cfg.Snapshot.Interval)
		}()
	}

	logs.Infof("tobd %s listening on %s", session, server.Path())
	if err := server.Serve(ctx, in.handle); err != nil {
		logs.Errorf("uds serve, err: %+v", err)
	}
	stop()

	engine.Stop()
	wg.Wait()

	if snapper.enabled() {
		if err := snapper.save(context.Background()); err != nil {
			logs.Errorf("final snapshot, err: %+v", err)
		}
	}
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			logs.Errorf("export close, err: %+v", err)
		}
		logs.Infof("export records written: %d", exporter.Written())
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logs.Errorf("nats close, err: %+v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logs.Infof("tobd stopped, last seq: %d, counters: %+v", in.LastSeq(), metrics.Snapshot())
}

// loadRegisters drives the symbol table and risk registers through a CSR
// handle. The register window has no locate field, so entries carrying a
// locate code are restaged directly before the commit.
func loadRegisters(table *symbol.Table, cfg ops.Loaded) (risk.Config, error) {
	staging := table.Stage()
	dev := csr.NewMemory(staging)

	var riskCfg risk.Config
	err := csr.With(dev.Opener(), func(h *csr.Handle) error {
		for _, e := range cfg.Symbols {
			if err := h.WriteSymbol(uint16(e.Index), e.Stock.Packed()); err != nil {
				return err
			}
			if e.Locate != 0 {
				if err := staging.Add(e); err != nil {
					return err
				}
			}
		}
		if err := h.CommitSymbols(); err != nil {
			return err
		}
		if err := risk.Apply(h, cfg.Risk); err != nil {
			return err
		}
		var err error
		riskCfg, err = risk.ReadConfig(h)
		return err
	})
	return riskCfg, err
}

func restore(ctx context.Context, engine *core.Engine, cfg ops.Loaded) (uint32, error) {
	rc := snapshot.RecoverConfig{}
	if cfg.Snapshot.Path != "" {
		if _, err := os.Stat(cfg.Snapshot.Path); err == nil {
			rc.SnapshotPath = cfg.Snapshot.Path
		}
	}
	if cfg.Export != nil {
		rc.ExportDir = cfg.Export.Dir
		rc.FilePrefix = cfg.Export.FilePrefix
	}
	result, err := snapshot.Recover(ctx, rc)
	if err != nil {
		return 0, err
	}
	if err := result.Apply(engine.Arena()); err != nil {
		return 0, err
	}
	logs.Infof("restored %d books, last seq %d, records applied %d", len(result.Books), result.LastSeq, result.Applied)
	return result.LastSeq, nil
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
