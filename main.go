package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gitaiops/internal"
	"gitaiops/pkg/dispatch"
	"gitaiops/pkg/gitlab"
	"gitaiops/pkg/processors"
	"gitaiops/pkg/scheduler"
	"gitaiops/pkg/webhook"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Webhook.Secret == "" {
		logger.Printf("warning: no webhook secret configured, all webhooks will be rejected")
	}

	priorities, err := internal.NewPriorityEngine(cfg.PriorityRules, internal.NewLogger("priority"))
	if err != nil {
		logger.Fatalf("compile priority rules: %v", err)
	}

	stream, err := internal.NewStream(cfg.Stream)
	if err != nil {
		logger.Fatalf("outcome stream: %v", err)
	}
	defer stream.Close()

	client, err := gitlab.NewClient(cfg.GitLab)
	if err != nil {
		logger.Fatalf("gitlab client: %v", err)
	}

	queue := internal.NewQueue(cfg.Queue.CapacityPerKind)
	dispatcher := dispatch.New(
		client,
		stream,
		cfg.Dispatch.MaxAttempts,
		time.Duration(cfg.Dispatch.BaseDelayMS)*time.Millisecond,
		internal.NewLogger("dispatch"),
	)

	pool := scheduler.New(queue, dispatcher,
		scheduler.WithWorkers(cfg.Workers.Count),
		scheduler.WithMaxAttempts(cfg.Workers.MaxRetryAttempts),
		scheduler.WithBaseDelay(time.Duration(cfg.Workers.RetryBaseDelayMS)*time.Millisecond),
		scheduler.WithGracePeriod(time.Duration(cfg.Workers.ShutdownGraceMS)*time.Millisecond),
		scheduler.WithLogger(internal.NewLogger("scheduler")),
	)
	pool.Register(processors.NewMergeRequestProcessor(client))
	pool.Register(processors.NewPipelineProcessor(client))
	pool.Register(processors.NewPushProcessor())
	for _, kind := range []internal.Kind{internal.KindIssue, internal.KindJob, internal.KindDeployment} {
		pool.Register(processors.NewAcknowledgeProcessor(kind))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Webhook.Path, webhook.NewHandler(
		cfg.Webhook.Secret,
		cfg.Server.MaxBodyBytes,
		queue,
		webhook.NewNormalizer(priorities),
		internal.NewLogger("webhook"),
	))
	mux.Handle("/healthz", &webhook.HealthHandler{
		Queue:        queue,
		WorkerCount:  pool.WorkerCount,
		Running:      pool.Running,
		BreakerState: client.BreakerState,
	})
	if cfg.Server.MetricsEnabled {
		mux.Handle(cfg.Server.MetricsPath, expvar.Handler())
	}

	poolCtx, cancelPool := context.WithCancel(context.Background())
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		if err := pool.Run(poolCtx); err != nil {
			logger.Printf("pool: %v", err)
		}
	}()

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	logger.Printf("shutting down")

	srvCtx, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := server.Shutdown(srvCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}

	cancelPool()
	select {
	case <-poolDone:
	case <-time.After(time.Duration(cfg.Workers.ShutdownGraceMS)*time.Millisecond + 5*time.Second):
		logger.Printf("pool did not drain within grace period")
	}
}
