// Package control owns the startup, reload, and shutdown orchestration
// that ties the compose parser, registry, health monitor, capability
// index, and router together into one running proxy instance.
package control

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcp-hub/proxy/pkg/hub/aggregator"
	"github.com/mcp-hub/proxy/pkg/hub/compose"
	"github.com/mcp-hub/proxy/pkg/hub/config"
	"github.com/mcp-hub/proxy/pkg/hub/health"
	"github.com/mcp-hub/proxy/pkg/hub/mcpclient"
	"github.com/mcp-hub/proxy/pkg/hub/registry"
	"github.com/mcp-hub/proxy/pkg/hub/router"
	"github.com/mcp-hub/proxy/pkg/logger"
)

// Instance owns the lifetime of every subsystem for one running proxy
// process: the registry, the health monitor, the capability index
// publisher, and the HTTP server.
type Instance struct {
	cfg       config.Config
	registry  *registry.Registry
	publisher *aggregator.Publisher
	monitor   *health.Monitor
	server    *http.Server
}

// New builds an Instance from a resolved Config. The compose document is
// parsed and the registry seeded before this returns; no goroutines are
// started yet — call Run to start serving and probing.
func New(cfg config.Config) (*Instance, error) {
	candidates, err := compose.ParseFile(cfg.ComposeFile)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, c := range candidates {
		reg.Upsert(c.Name, c.BaseURL, c.Labels)
	}

	publisher := aggregator.NewPublisher(reg)
	client := mcpclient.New()

	monCfg := health.Config{
		ProbeInterval:     cfg.ProbeInterval(),
		ProbeTimeout:      cfg.ProbeTimeout,
		CapabilityTimeout: cfg.CapabilityTimeout,
		FailThreshold:     cfg.FailThreshold,
	}
	monitor, err := health.NewMonitor(reg, health.NewRefresher(client), monCfg, publisher.Rebuild)
	if err != nil {
		return nil, err
	}

	rt := router.New(reg, publisher, client, router.Config{
		RequestDeadline: cfg.RequestDeadline,
		RoutingBudget:   100 * time.Millisecond,
	})

	return &Instance{
		cfg:       cfg,
		registry:  reg,
		publisher: publisher,
		monitor:   monitor,
		server:    &http.Server{Addr: portAddr(cfg.Port), Handler: rt.Handler()},
	}, nil
}

func portAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}

// Run starts accepting HTTP connections and runs the health monitor until
// ctx is canceled, then drains in-flight requests up to ShutdownGrace
// before forcing the listener closed. The startup order matches the
// documented sequence: the server begins accepting connections
// immediately (serving healthy_servers=0 until probes land), then the
// health monitor starts its first sweep.
func (in *Instance) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("proxy listening", "addr", in.server.Addr)
		if err := in.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go in.monitor.Run(monitorCtx)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	cancelMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), in.cfg.ShutdownGrace)
	defer cancel()
	logger.Infow("shutting down", "grace", in.cfg.ShutdownGrace)
	if err := in.server.Shutdown(shutdownCtx); err != nil {
		_ = in.server.Close()
		return err
	}
	return nil
}

// Reload re-parses the compose document and diffs it against the
// registry: new and changed services are upserted, absent ones are
// removed. A malformed document leaves the previous registry untouched.
func (in *Instance) Reload() error {
	candidates, err := compose.ParseFile(in.cfg.ComposeFile)
	if err != nil {
		logger.Errorw("reload failed, keeping previous registry", "error", err)
		return err
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Name] = true
		in.registry.Upsert(c.Name, c.BaseURL, c.Labels)
	}
	for _, name := range in.registry.Names() {
		if !seen[name] {
			in.registry.Remove(name)
		}
	}

	in.publisher.Rebuild()
	return nil
}

// Registry exposes the registry for callers that need a snapshot, such as
// tests; the status/servers CLI commands read it over HTTP instead.
func (in *Instance) Registry() *registry.Registry { return in.registry }
