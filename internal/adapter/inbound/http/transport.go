// Package http provides the HTTP transport adapter for the proxy.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcpbridge/gateway/internal/domain/proxy"
	"github.com/mcpbridge/gateway/internal/port/inbound"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mount is one raw MCP endpoint: a path (the aggregate mount, or one
// per-upstream mount) and the interceptor chain that serves it
// (spec.md §4.6, §6 "Raw MCP port").
type Mount struct {
	Path  string
	Chain proxy.MessageInterceptor
}

// Transport is the inbound adapter serving the raw MCP proxy port: one
// HTTP listener multiplexing every configured Mount behind the same
// security middleware chain (request id, real IP, DNS-rebinding
// protection, metrics).
type Transport struct {
	server         *http.Server
	addr           string
	mounts         []Mount
	allowedOrigins []string
	certFile       string
	keyFile        string
	logger         *slog.Logger
	registry       *prometheus.Registry
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithAddr sets the listen address. Defaults to "127.0.0.1:8081".
func WithAddr(addr string) TransportOption {
	return func(t *Transport) { t.addr = addr }
}

// WithTLS enables HTTPS with the given certificate/key pair.
func WithTLS(certFile, keyFile string) TransportOption {
	return func(t *Transport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithAllowedOrigins restricts which Origin header values are accepted,
// guarding against DNS-rebinding attacks against the local listener.
func WithAllowedOrigins(origins []string) TransportOption {
	return func(t *Transport) { t.allowedOrigins = origins }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) { t.logger = logger }
}

// NewTransport creates a Transport serving every given mount.
func NewTransport(mounts []Mount, opts ...TransportOption) *Transport {
	t := &Transport{
		addr:   "127.0.0.1:8081",
		mounts: mounts,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start builds the mux, wraps every mount in the middleware chain, and
// begins serving. It blocks until the listener fails or Close is called,
// matching inbound.ProxyService's contract.
func (t *Transport) Start(ctx context.Context) error {
	t.registry = prometheus.NewRegistry()
	t.registry.MustRegister(collectors.NewGoCollector())
	metrics := NewMetrics(t.registry)

	mux := http.NewServeMux()
	for _, m := range t.mounts {
		handler := mcpHandler(m.Chain, t.logger)
		chained := RequestIDMiddleware(t.logger)(handler)
		chained = RealIPMiddleware(chained)
		chained = DNSRebindingProtection(t.allowedOrigins)(chained)
		chained = MetricsMiddleware(metrics)(chained)
		mux.Handle(m.Path, chained)
		mux.Handle(m.Path+"/", chained)
	}

	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			err = t.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	t.logger.Info("raw mcp port listening", "addr", t.addr, "mounts", len(t.mounts))

	select {
	case <-ctx.Done():
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}

// Close gracefully stops the listener.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

var _ inbound.ProxyService = (*Transport)(nil)
