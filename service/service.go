package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/types"
)

// ServerConfig is the listen address of a single server
type ServerConfig struct {
	Enabled bool
	Host    string
	Port    string
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type Config struct {
	Healthz ServerConfig
	Metrics ServerConfig
	API     ServerConfig
}

type Service struct {
	Config  Config
	Healthz *HealthzServer
	Metrics *MetricsServer
	Results *ResultsServer
}

// New creates every server for reg. runID reports the id of the most recent run and may be nil.
func New(cfg Config, reg *registry.Registry, info types.AppInfo, runID func() string) *Service {
	s := &Service{
		Config:  cfg,
		Healthz: NewHealthzServer(reg, runID),
		Metrics: &MetricsServer{},
		Results: NewResultsServer(reg, info, runID),
	}
	return s
}

type starter interface {
	Start(ctx context.Context, addr string) error
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	s.start(ctx, "healthz", s.Config.Healthz, s.Healthz)
	s.start(ctx, "metrics", s.Config.Metrics, s.Metrics)
	s.start(ctx, "results api", s.Config.API, s.Results)

	log.Info("service started")
}

func (s *Service) start(ctx context.Context, name string, cfg ServerConfig, srv starter) {
	if !cfg.Enabled {
		return
	}
	addr := cfg.Addr()
	log.Info("starting "+name+" server", "addr", addr)
	go func() {
		if err := srv.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting "+name+" server", "err", err)
			metrics.RecordErrorDetails("error starting "+name+" server", err)
		}
	}()
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	if s.Config.Healthz.Enabled {
		_ = s.Healthz.Shutdown()
		log.Info("healthz stopped")
	}
	if s.Config.Metrics.Enabled {
		_ = s.Metrics.Shutdown()
		log.Info("metrics stopped")
	}
	if s.Config.API.Enabled {
		_ = s.Results.Shutdown()
		log.Info("results api stopped")
	}

	log.Info("service stopped")
}
