// Command supervisor runs one ingestion supervisor: it reads the
// supervisor spec, connects to Kafka and the metadata store, and keeps
// the datasource's indexing tasks aligned with the stream until
// signalled to stop.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/internal/config"
	"github.com/demo-kratia/druid/internal/logging"
	"github.com/demo-kratia/druid/metrics"
	"github.com/demo-kratia/druid/seekable"
	"github.com/demo-kratia/druid/store"
	"github.com/demo-kratia/druid/store/memory"
	mysqlstore "github.com/demo-kratia/druid/store/mysql"
	pgstore "github.com/demo-kratia/druid/store/postgres"
	"github.com/demo-kratia/druid/stream/kafka"
	"github.com/demo-kratia/druid/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	specPath := flag.String("config", "supervisor.yaml", "Path to the supervisor spec file")
	flag.Parse()

	logging.InitFromEnv()
	log := logging.L()

	cfg, err := config.Load(*specPath)
	if err != nil {
		return fmt.Errorf("load supervisor spec: %w", err)
	}

	kafkaCfg, err := kafka.LoadConfig(cfg.KafkaConfigPath)
	if err != nil {
		return fmt.Errorf("load kafka config: %w", err)
	}
	adapter, err := kafka.New(kafkaCfg)
	if err != nil {
		return fmt.Errorf("connect to kafka: %w", err)
	}

	metaStore, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	tuning := supervisor.TaskTuningConfig{PollTimeout: kafkaCfg.PollTimeout}
	if cfg.TuningPath != "" {
		tuning, err = config.LoadTuningSpec(cfg.TuningPath, *specPath)
		if err != nil {
			return fmt.Errorf("load tuning spec: %w", err)
		}
		if tuning.PollTimeout == 0 {
			tuning.PollTimeout = kafkaCfg.PollTimeout
		}
	}

	taskClient, err := task.NewHTTPClient(task.HTTPClientConfig{
		BaseURL: cfg.TaskRuntimeURL,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("task runtime client: %w", err)
	}

	engine, err := seekable.New(seekable.Config{
		DataSource:   supervisor.DataSourceName(cfg.DataSource),
		Stream:       cfg.Stream,
		Adapter:      adapter,
		TaskClient:   taskClient,
		Store:        metaStore,
		TaskCount:    cfg.TaskCount,
		Replicas:     cfg.Replicas,
		TaskDuration: cfg.TaskDuration,
		TickPeriod:   cfg.TickPeriod,
		Tuning:       tuning,
		Logger:       log,
		Metrics:      metrics.NewCollector(cfg.DataSource),
	})
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr)
		metricsServer.Start()
		log.Info("metrics server listening", "addr", cfg.MetricsAddr)
	}

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	if cfg.Suspended {
		if err := engine.Suspend(); err != nil {
			return err
		}
		log.Info("supervisor started suspended", "dataSource", cfg.DataSource)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := engine.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop supervisor: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			log.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}

// openStore builds the metadata store for the configured driver. The
// returned cleanup closes the underlying connection pool.
func openStore(cfg config.Config) (store.MetadataStore, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return pgstore.New(db), func() { _ = db.Close() }, nil
	case "mysql":
		db, err := sql.Open("mysql", cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		return mysqlstore.New(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
