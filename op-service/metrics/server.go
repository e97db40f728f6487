package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Server serves a registry on /metrics.
type Server struct {
	listener net.Listener
	srv      *http.Server
	done     chan error
}

// StartServer binds to host:port and serves the registry in the background.
// A 0 port binds to an available one, see Server.Addr.
func StartServer(r *prometheus.Registry, hostname string, port int) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(hostname, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics server: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(r, promhttp.HandlerFor(r, promhttp.HandlerOpts{})))
	s := &Server{
		listener: listener,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan error, 1),
	}
	go func() {
		s.done <- s.srv.Serve(listener)
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-s.done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Push sends the registry contents to a Pushgateway under the given job name,
// replacing the metrics of any earlier push of the same job.
func Push(ctx context.Context, url string, job string, r *prometheus.Registry) error {
	return push.New(url, job).Gatherer(r).PushContext(ctx)
}
