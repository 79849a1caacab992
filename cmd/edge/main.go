package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emivaldigle/plate-recon-rp/internal/config"
	"github.com/emivaldigle/plate-recon-rp/internal/gate"
	"github.com/emivaldigle/plate-recon-rp/internal/logger"
	"github.com/emivaldigle/plate-recon-rp/internal/mqtt"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
	"github.com/emivaldigle/plate-recon-rp/internal/scheduler"
	"github.com/emivaldigle/plate-recon-rp/internal/service"
	httptransport "github.com/emivaldigle/plate-recon-rp/internal/transport/http"
)

func main() {
	// 1. load config
	cfgPath := os.Getenv("EDGE_CONFIG")
	if cfgPath == "" {
		cfgPath = "internal/config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(os.Getenv("EDGE_DEBUG") != "")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. embedded store (WAL mode)
	gdb, err := repo.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 4. broker client
	broker, err := mqtt.NewClient(cfg.MQTT, log)
	if err != nil {
		log.Fatalf("connect broker: %v", err)
	}
	defer broker.Close()

	// 5. repo & remote API
	repository := repo.NewRepository(gdb, log)
	api := remote.NewClient(cfg.Remote, log)

	// 6. services
	syncer := service.NewSynchronizer(repository, api, cfg.Entity.EntityID, log)
	events := service.NewEventService(repository, broker, api, cfg.Entity.EntityID, cfg.Entity.PocID, log)
	access := service.NewAccessService(repository, api, cfg.Entity.EntityID, log)
	parking := service.NewParkingPublisher(repository, broker, cfg.Entity.EntityID, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 7. initial load: config first, then reference data
	entityCfg, err := syncer.Initialize(ctx)
	if err != nil {
		log.Fatalf("initial load: %v", err)
	}

	// 8. inbound parking updates
	listener := mqtt.NewListener(repository, cfg.Entity.EntityID, log)
	if err := listener.Start(broker); err != nil {
		log.Fatalf("start listener: %v", err)
	}

	// 9. periodic sync + outbox flush
	sched := scheduler.New(syncer, events, entityCfg.SyncIntervalMinutes, log)
	go sched.Run(ctx)

	// 10. gate controller + admin/detection HTTP surface
	controller := gate.NewController(access, events, parking, gate.LogSignaler{Log: log}, cfg.Detection, log)
	router := httptransport.NewRouter(httptransport.Handlers{
		Repo:       repository,
		Sync:       syncer,
		Access:     access,
		Events:     events,
		Controller: controller,
	}, cfg.RateLimit, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Infof("edge daemon listening on %s (entity %s)", addr, cfg.Entity.EntityID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %v", err)
	}
}
