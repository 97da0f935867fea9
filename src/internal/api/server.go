package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"

	"hellopod/src/internal/domain"
	"hellopod/src/internal/service/greeting"
)

// Notifier signals that the host name may have changed.
type Notifier interface {
	Subscribe() (<-chan struct{}, func())
}

type Api struct {
	ctx     *domain.Context
	greeter *greeting.Service
	changes Notifier
	metrics *metrics
	server  *http.Server

	done      chan struct{}
	closeOnce sync.Once
}

func Create(ctx *domain.Context, greeter *greeting.Service, changes Notifier) *Api {
	a := &Api{
		ctx:     ctx,
		greeter: greeter,
		changes: changes,
		metrics: newMetrics(),
		done:    make(chan struct{}),
	}
	a.server = &http.Server{
		Addr:              ctx.Config.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Router serves exactly one route. Other paths and methods fall through to mux's 404 and 405.
func (a *Api) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", a.handleIndex).Methods(http.MethodGet, http.MethodHead)
	return r
}

// StreamHandler serves the WebSocket greeting stream. It is mounted on its own
// listener so the public route never inspects request headers.
func (a *Api) StreamHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", a.handleStream).Methods(http.MethodGet)
	return r
}

func (a *Api) MetricsHandler() http.Handler {
	return a.metrics.handler()
}

// Run listens on the configured address and blocks until Shutdown.
func (a *Api) Run() error {
	l, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", a.server.Addr)
	}
	return a.Serve(l)
}

func (a *Api) Serve(l net.Listener) error {
	pfxlog.Logger().Infof("Listening on %s", l.Addr())
	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "api server failed")
	}
	return nil
}

// Shutdown ends open greeting streams and drains in-flight requests.
func (a *Api) Shutdown(ctx context.Context) error {
	a.closeOnce.Do(func() { close(a.done) })
	return a.server.Shutdown(ctx)
}

func (a *Api) handleIndex(w http.ResponseWriter, r *http.Request) {
	msg, err := a.greet(r.RemoteAddr)
	if err != nil {
		http.Error(w, domain.HostnameErrorBody, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(msg))
}

func (a *Api) greet(remote string) (string, error) {
	log := pfxlog.Logger().WithField("remote", remote)

	msg, err := a.greeter.Greet()
	if err != nil {
		a.metrics.greetings.WithLabelValues(domain.ResultError).Inc()
		log.WithError(err).Error("unable to build greeting")
		return "", err
	}

	a.metrics.greetings.WithLabelValues(domain.ResultOk).Inc()
	log.Debug("greeted")
	return msg, nil
}
