package observability

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
	metricspkg "github.com/wakefire/wakefire/internal/observability/metrics"
)

const readHeaderTimeout = 5 * time.Second

// Endpoint serves /metrics over HTTP. It accepts no commands.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewEndpoint creates an endpoint on listenAddress (e.g. ":9090").
func NewEndpoint(listenAddress string, metrics *Metrics, log logger.Logger) (*Endpoint, error) {
	if metrics == nil {
		return nil, errors.Newf("metrics are required").
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if listenAddress == "" {
		return nil, errors.Newf("telemetry listen address is empty").
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.Global().Module("observability")
	}

	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		log:           log,
	}, nil
}

// Start binds the listener and serves in a background goroutine until ctx
// is cancelled. The returned error covers binding only.
func (e *Endpoint) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component("observability").
			Category(errors.CategorySystem).
			Context("listen", e.listenAddress).
			Build()
	}

	e.mu.Lock()
	e.listener = ln
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	e.done = make(chan struct{})
	server, done := e.server, e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		e.log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.log.Error("metrics HTTP server error", logger.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			e.shutdown()
		case <-done:
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Wait blocks until the server has stopped.
func (e *Endpoint) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Endpoint) shutdown() {
	e.log.Info("stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("metrics server shutdown error", logger.Error(err))
	}
}
