// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"qrcode-workers/internal/api"
	"qrcode-workers/internal/common/camunda"
	"qrcode-workers/internal/common/config"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/observability"
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/form"
	"qrcode-workers/internal/photo"
	"qrcode-workers/internal/qrrender"

	bcp "qrcode-workers/internal/workers/contact/build-contact-payload"
	np "qrcode-workers/internal/workers/contact/normalize-photo"
	rqc "qrcode-workers/internal/workers/qrcode/render-qr-code"
)

const (
	sessionMaxIdle    = 30 * time.Minute
	sessionPruneEvery = 5 * time.Minute
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, observability.WithJaeger(cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio))
	defer obs.Shutdown()

	// --- Shared domain components ---
	builder := contact.NewBuilder(
		photo.NewNormalizer(cfg.Photo, log),
		contact.NewHTTPFetcher(cfg.Photo, log),
		log,
		contact.WithObservability(obs),
	)
	renderer := qrrender.NewRenderer(cfg.Render, log)
	store := form.NewStore(builder, log, 0)

	// --- Zeebe workers (optional) ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.Worker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

		if len(cfg.Camunda.DeployResources) > 0 {
			deployCtx, cancelDeploy := context.WithTimeout(context.Background(), config.GetDuration(cfg.Camunda.RequestTimeout))
			resp, err := zeebe.DeployResources(deployCtx, cfg.Camunda.DeployResources...)
			cancelDeploy()
			if err != nil {
				zapLog.Fatal("process deployment failed", zap.Error(err))
			}
			for _, d := range resp.GetDeployments() {
				if p := d.GetProcess(); p != nil {
					zapLog.Info("Process deployed",
						zap.String("bpmnProcessId", p.GetBpmnProcessId()),
						zap.Int32("version", p.GetVersion()),
					)
				}
			}
		}

		workers = registerWorkers(cfg, zeebe, builder, obs, log, zapLog)
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Info("Camunda disabled, serving the HTTP form only")
	}

	// --- HTTP server ---
	var ready func(ctx context.Context) error
	if zeebe != nil {
		ready = zeebe.HealthCheck
	}
	srv := api.NewServer(api.Options{
		Store:          store,
		Renderer:       renderer,
		Logger:         log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadyCheck:     ready,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.NewRouter(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Idle session pruning ---
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sessionPruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.Prune(sessionMaxIdle)
			case <-pruneCtx.Done():
				return
			}
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	stopPrune()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	store.Close()
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func registerWorkers(cfg *config.Config, zeebe *camunda.Client, builder *contact.Builder, obs *observability.Observability, log logger.Logger, zapLog *zap.Logger) []*camunda.Worker {
	var workers []*camunda.Worker
	add := func(w *camunda.Worker) {
		if w != nil {
			workers = append(workers, w)
		}
	}

	// Contact payload build
	{
		handler, err := bcp.NewHandler(bcp.HandlerOptions{
			AppConfig:     cfg,
			Builder:       builder,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create contact payload handler", zap.Error(err))
		}
		add(camunda.StartWorker(zeebe.GetClient(), bcp.TaskType, config.GetWorkerConfig(cfg, bcp.TaskType), handler, log))
	}

	// Photo normalize
	{
		handler, err := np.NewHandler(np.HandlerOptions{
			AppConfig:     cfg,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create photo normalize handler", zap.Error(err))
		}
		add(camunda.StartWorker(zeebe.GetClient(), np.TaskType, config.GetWorkerConfig(cfg, np.TaskType), handler, log))
	}

	// QR render
	{
		handler, err := rqc.NewHandler(rqc.HandlerOptions{
			AppConfig:     cfg,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create QR render handler", zap.Error(err))
		}
		add(camunda.StartWorker(zeebe.GetClient(), rqc.TaskType, config.GetWorkerConfig(cfg, rqc.TaskType), handler, log))
	}

	return workers
}
