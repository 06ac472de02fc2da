package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"table-lock/internal/config"
	"table-lock/internal/infra/etcd"
	"table-lock/internal/infra/fs"
	"table-lock/internal/lock"
	"table-lock/internal/tracing"
)

func main() {
	var (
		name      = flag.String("name", "", "logical lock name shared by all competitors")
		location  = flag.String("location", "", "path or URI of the resource's lock file")
		hold      = flag.Duration("hold", 0, "how long to hold the lock; 0 holds until a signal")
		metricsOn = flag.String("metrics-addr", "", "expose prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	if *name == "" || *location == "" {
		log.Fatal("both -name and -location are required")
	}

	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("table-lock")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	holderID := uuid.New().String()
	logger.Info("starting lockctl", "holder_id", holderID, "lock_name", *name)

	// 3. Root context with graceful shutdown on SIGINT/SIGTERM
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	// 4. Optional metrics endpoint
	if *metricsOn != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsOn, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	// 5. Coordination session, owned here and connected explicitly
	var sessions *etcd.SessionManager
	if cfg.CoordinationEnabled {
		sessions = etcd.NewSessionManager(cfg.EtcdEndpoints, cfg.EtcdTimeout, cfg.SessionTTL, cfg.CoordinationNamespace, logger)
		if err := sessions.Connect(rootCtx); err != nil {
			log.Fatalf("failed to connect coordination session: %v", err)
		}
		defer func() {
			if err := sessions.Close(); err != nil {
				logger.Error("failed to close coordination session", "error", err)
			}
		}()
	}

	// 6. Build and acquire the lock
	handle := lock.New(lock.Options{
		Location:        *location,
		Name:            *name,
		RetryCount:      cfg.RetryCount,
		RetryInterval:   cfg.RetryInterval,
		UseCoordination: cfg.CoordinationEnabled,
	}, fs.NewLocalStorage(), sessions, logger)

	if !handle.LockWithRetries(rootCtx) {
		logger.Error("failed to acquire lock", "lock_name", *name, "attempts", cfg.RetryCount)
		os.Exit(1)
	}

	// 7. Hold until the signal or the hold duration, whichever comes first
	if *hold > 0 {
		select {
		case <-rootCtx.Done():
		case <-time.After(*hold):
		}
	} else {
		<-rootCtx.Done()
	}

	// 8. Release
	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if !handle.Unlock(releaseCtx) {
		logger.Error("failed to release lock", "lock_name", *name)
		os.Exit(1)
	}
	logger.Info("done", "lock_name", *name)
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()
}
