// Command hlr-gsup runs the GSUP/IPA HLR front-end: the peer-facing
// listener and, alongside it, the admin/status HTTP+WS surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osmocom-go/hlr-gsup/internal/logger"
	"github.com/osmocom-go/hlr-gsup/pkg/audit"
	"github.com/osmocom-go/hlr-gsup/pkg/auth"
	"github.com/osmocom-go/hlr-gsup/pkg/config"
	"github.com/osmocom-go/hlr-gsup/pkg/health"
	"github.com/osmocom-go/hlr-gsup/pkg/metrics"
	"github.com/osmocom-go/hlr-gsup/pkg/provisioner"
	"github.com/osmocom-go/hlr-gsup/pkg/routing"
	"github.com/osmocom-go/hlr-gsup/pkg/server"
	"github.com/osmocom-go/hlr-gsup/pkg/web"
)

var (
	configPath = flag.String("config", "", "path to an optional YAML config file")
	version    = flag.Bool("version", false, "print version and exit")
)

const buildVersion = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Println(buildVersion)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Path:   cfg.Log.Path,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	m := metrics.Init(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	hc := health.New(health.Config{Enabled: true, CheckInterval: 10 * time.Second})

	aw, err := audit.New(cfg.Audit.DSN, log)
	if err != nil {
		log.Fatal("failed to initialize audit writer", err)
	}

	prov := provisioner.New(provisioner.Config{
		BaseURL: cfg.Provisioner.URL,
		Timeout: cfg.Provisioner.Timeout,
	}, m)

	routingStore := routing.New()

	var adminSrv *web.Server
	var notifier server.ProcedureNotifier
	if cfg.Admin.JWTSecret != "" {
		authSvc := auth.NewService(auth.Config{
			JWTSecret:   cfg.Admin.JWTSecret,
			TokenExpiry: 24 * time.Hour,
		})
		adminSrv = web.New(web.Config{
			Addr:    cfg.GetAdminAddr(),
			Auth:    authSvc,
			Routing: routingStore,
			Health:  hc,
			Log:     log,
		})
		notifier = adminSrv
	}

	srv := server.New(server.Config{
		Addr:                  cfg.GetAddr(),
		UpdateLocationTimeout: cfg.UpdateLoc.Timeout,
		ShutdownGrace:         5 * time.Second,
	}, prov, routingStore, m, log, aw, hc, notifier)

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Serve()
	}()
	if adminSrv != nil {
		go func() {
			errCh <- adminSrv.Start()
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("server error, shutting down", err)
	}

	srv.Shutdown()
	if adminSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		adminSrv.Stop(ctx)
	}
}
