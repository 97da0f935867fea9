package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"hellopod/src/internal/domain"
	"hellopod/src/internal/service/greeting"
)

type fakeHost struct {
	mu   sync.Mutex
	name string
	err  error
}

func (h *fakeHost) set(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name, h.err = name, err
}

func (h *fakeHost) resolve() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name, h.err
}

type fakeNotifier struct {
	ch chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan struct{}, 1)}
}

func (n *fakeNotifier) Subscribe() (<-chan struct{}, func()) {
	return n.ch, func() {}
}

func (n *fakeNotifier) fire() {
	n.ch <- struct{}{}
}

func testContext() *domain.Context {
	return &domain.Context{Config: domain.Config{
		Version: "test",
		Host:    "127.0.0.1",
		Port:    "0",
	}}
}

func newTestApi(t *testing.T, host *fakeHost, changes Notifier) (*Api, *httptest.Server) {
	t.Helper()
	var resolve func() (string, error)
	if host != nil {
		resolve = host.resolve
	}
	a := Create(testContext(), greeting.Create(resolve), changes)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return a, srv
}

func get(t *testing.T, method, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func Test_IndexGreetsWithSystemHostname(t *testing.T) {
	req := require.New(t)
	_, srv := newTestApi(t, nil, nil)

	name, err := os.Hostname()
	req.NoError(err)

	resp, err := http.Get(srv.URL + "/")
	req.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	req.Equal("Hello from Kubernetes! Pod: "+name, string(body))
}

func Test_IndexIsIdempotent(t *testing.T) {
	req := require.New(t)
	_, srv := newTestApi(t, &fakeHost{name: "hello-7d9f"}, nil)

	status1, body1 := get(t, http.MethodGet, srv.URL+"/")
	status2, body2 := get(t, http.MethodGet, srv.URL+"/")

	req.Equal(http.StatusOK, status1)
	req.Equal(http.StatusOK, status2)
	req.Equal(body1, body2)
	req.Equal("Hello from Kubernetes! Pod: hello-7d9f", body1)
}

func Test_IndexResolvesPerRequest(t *testing.T) {
	req := require.New(t)
	host := &fakeHost{name: "pod-a"}
	_, srv := newTestApi(t, host, nil)

	_, body := get(t, http.MethodGet, srv.URL+"/")
	req.Equal("Hello from Kubernetes! Pod: pod-a", body)

	host.set("pod-b", nil)
	_, body = get(t, http.MethodGet, srv.URL+"/")
	req.Equal("Hello from Kubernetes! Pod: pod-b", body)
}

func Test_HeadHasNoBody(t *testing.T) {
	req := require.New(t)
	_, srv := newTestApi(t, &fakeHost{name: "pod-a"}, nil)

	status, body := get(t, http.MethodHead, srv.URL+"/")
	req.Equal(http.StatusOK, status)
	req.Empty(body)
}

func Test_OtherRoutesUseDefaults(t *testing.T) {
	req := require.New(t)
	_, srv := newTestApi(t, &fakeHost{name: "pod-a"}, nil)

	status, _ := get(t, http.MethodPost, srv.URL+"/")
	req.Equal(http.StatusMethodNotAllowed, status)

	status, _ = get(t, http.MethodDelete, srv.URL+"/")
	req.Equal(http.StatusMethodNotAllowed, status)

	status, _ = get(t, http.MethodGet, srv.URL+"/health")
	req.Equal(http.StatusNotFound, status)

	status, _ = get(t, http.MethodGet, srv.URL+"/index.html")
	req.Equal(http.StatusNotFound, status)
}

func Test_IndexResolverFailure(t *testing.T) {
	req := require.New(t)
	a, srv := newTestApi(t, &fakeHost{err: errors.New("uname failed")}, nil)

	status, body := get(t, http.MethodGet, srv.URL+"/")
	req.Equal(http.StatusInternalServerError, status)
	req.Equal(domain.HostnameErrorBody, strings.TrimSpace(body))
	req.NotContains(body, "uname failed")

	req.Equal(float64(1), testutil.ToFloat64(a.metrics.greetings.WithLabelValues(domain.ResultError)))
	req.Equal(float64(0), testutil.ToFloat64(a.metrics.greetings.WithLabelValues(domain.ResultOk)))
}

func Test_MetricsHandlerExportsGreetings(t *testing.T) {
	req := require.New(t)
	a, srv := newTestApi(t, &fakeHost{name: "pod-a"}, nil)

	get(t, http.MethodGet, srv.URL+"/")
	get(t, http.MethodGet, srv.URL+"/")

	metricsSrv := httptest.NewServer(a.MetricsHandler())
	defer metricsSrv.Close()

	status, body := get(t, http.MethodGet, metricsSrv.URL)
	req.Equal(http.StatusOK, status)
	req.Contains(body, `hellopod_greetings_total{result="ok"} 2`)
	req.Contains(body, `hellopod_greetings_total{result="error"} 0`)
	req.Contains(body, "hellopod_streams_active 0")
}

func Test_ServeOnListener(t *testing.T) {
	req := require.New(t)
	a := Create(testContext(), greeting.Create((&fakeHost{name: "pod-a"}).resolve), nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	done := make(chan error, 1)
	go func() {
		done <- a.Serve(l)
	}()

	status, body := get(t, http.MethodGet, "http://"+l.Addr().String()+"/")
	req.Equal(http.StatusOK, status)
	req.True(strings.HasPrefix(body, "Hello from Kubernetes! Pod: "))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(a.Shutdown(ctx))
	req.NoError(<-done)
}

func Test_IndexIgnoresUpgradeHeaders(t *testing.T) {
	req := require.New(t)
	_, srv := newTestApi(t, &fakeHost{name: "pod-a"}, newFakeNotifier())

	for _, headers := range []map[string]string{
		{"Connection": "Upgrade", "Upgrade": "websocket"},
		{
			"Connection":            "Upgrade",
			"Upgrade":               "websocket",
			"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
			"Sec-WebSocket-Version": "13",
		},
	} {
		r, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
		req.NoError(err)
		for k, v := range headers {
			r.Header.Set(k, v)
		}

		resp, err := http.DefaultClient.Do(r)
		req.NoError(err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		req.NoError(err)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("Hello from Kubernetes! Pod: pod-a", string(body))
	}
}
