package service

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"

	"hellopod/src/internal/api"
	"hellopod/src/internal/domain"
	"hellopod/src/internal/service/greeting"
	"hellopod/src/internal/service/hostname"
)

type Orchestrator struct {
	ctx *domain.Context
}

func CreateOrchestrator(ctx *domain.Context) *Orchestrator {
	return &Orchestrator{
		ctx: ctx,
	}
}

// Run blocks until SIGINT/SIGTERM or a listener failure.
func (o *Orchestrator) Run() error {
	stop, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	return o.run(stop)
}

// run returns only after every listener and the watcher have exited.
func (o *Orchestrator) run(stop context.Context) error {
	log := pfxlog.Logger()
	cfg := o.ctx.Config
	log.Infof("Starting hellopod (Version: %s)...", cfg.Version)

	var wg sync.WaitGroup
	watchCtx, cancelWatch := context.WithCancel(context.Background())

	watcher := hostname.NewWatcher(cfg.HostnameFile)
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Streams still work without it, they just never see a rename
		if err := watcher.Run(watchCtx); err != nil {
			log.WithError(err).Warn("host name watcher stopped")
		}
	}()

	server := api.Create(o.ctx, greeting.Create(hostname.System), watcher)

	// One slot per listener so no goroutine blocks on exit
	errs := make(chan error, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(); err != nil {
			errs <- err
		}
	}()

	var aux []*http.Server
	if cfg.StreamAddr != "" {
		aux = append(aux, serveAux(&wg, errs, "greeting stream", cfg.StreamAddr, server.StreamHandler()))
	}
	if cfg.MetricsAddr != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", server.MetricsHandler()).Methods(http.MethodGet)
		aux = append(aux, serveAux(&wg, errs, "metrics", cfg.MetricsAddr, r))
	}

	var runErr error
	select {
	case <-stop.Done():
		log.Info("Received shutdown signal. Shutting down...")
	case runErr = <-errs:
		log.WithError(runErr).Error("listener failed, shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// Closes open streams too, so it goes before the stream listener
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("api server did not shut down cleanly")
	}
	for _, srv := range aux {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warnf("%s server did not shut down cleanly", srv.Addr)
		}
	}
	cancelWatch()

	wg.Wait()
	log.Info("Stopped")
	return runErr
}

func serveAux(wg *sync.WaitGroup, errs chan<- error, name, addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		pfxlog.Logger().Infof("Serving %s on %s", name, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- errors.Wrapf(err, "%s server failed", name)
		}
	}()
	return srv
}
