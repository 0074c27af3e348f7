// Package app wires the core services, observability sinks and transports
// from the configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetsense/fleettrack/config"
	"github.com/fleetsense/fleettrack/core/detector"
	"github.com/fleetsense/fleettrack/core/fleetstats"
	coremetrics "github.com/fleetsense/fleettrack/core/metrics"
	"github.com/fleetsense/fleettrack/core/mission"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/scheduler"
	"github.com/fleetsense/fleettrack/core/sim"
	"github.com/fleetsense/fleettrack/core/store"
	"github.com/fleetsense/fleettrack/core/telemetry"
	"github.com/fleetsense/fleettrack/infra/archive"
	"github.com/fleetsense/fleettrack/infra/cache"
	"github.com/fleetsense/fleettrack/infra/logger"
	"github.com/fleetsense/fleettrack/infra/metrics"
	"github.com/fleetsense/fleettrack/infra/mqtt"
	"github.com/fleetsense/fleettrack/internal/eventbus"
)

// Service orchestrates the fleet tracking engine.
type Service struct {
	Store     *store.Memory
	Telemetry *telemetry.Service
	Missions  *mission.Service
	Detector  *detector.Detector
	Scheduler *scheduler.Scheduler
	Simulator *sim.Simulator
	Stats     *fleetstats.Service

	bus      eventbus.EventBus
	log      logger.Logger
	mqtt     *mqtt.Client
	cache    *cache.RedisCache
	arch     *archive.SQLiteArchive
	promAddr string
	mqttOn   bool
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	st := store.NewMemory()
	bus := eventbus.New()

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusAddr != "" {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.URL != "" {
		in := cfg.Metrics.Influx
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket))
	}
	svc := &Service{Store: st, bus: bus, log: logg, promAddr: cfg.Metrics.PrometheusAddr, mqttOn: cfg.MQTT.Enabled}
	if cfg.Archive.Path != "" {
		ar, err := archive.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("anomaly archive: %w", err)
		}
		svc.arch = ar
		sinks = append(sinks, ar)
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	tel, err := telemetry.New(st, logger.New("telemetry"))
	if err != nil {
		return nil, err
	}
	tel.SetSink(sink)
	tel.SetBus(bus)
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.Config)
		if err != nil {
			logg.Warnf("redis cache unavailable, positions are served from the store only: %v", err)
		} else {
			svc.cache = rc
			tel.SetCache(rc)
		}
	}

	det, err := detector.New(cfg.Detection, st, logger.New("detector"))
	if err != nil {
		return nil, err
	}
	det.SetSink(sink)
	det.SetBus(bus)

	simulator, err := sim.New(cfg.Simulator, st, tel, logger.New("sim"))
	if err != nil {
		return nil, err
	}

	missions, err := mission.New(cfg.Mission, st, logger.New("mission"))
	if err != nil {
		return nil, err
	}
	missions.SetBus(bus)
	missions.SetSimulator(simulator)

	sched, err := scheduler.New(cfg.Scheduler, det, logger.New("scheduler"))
	if err != nil {
		return nil, err
	}

	stats, err := fleetstats.New(st, logger.New("fleetstats"))
	if err != nil {
		return nil, err
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(cfg.MQTT.Config)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mqtt = client
	}

	svc.Telemetry = tel
	svc.Missions = missions
	svc.Detector = det
	svc.Scheduler = sched
	svc.Simulator = simulator
	svc.Stats = stats
	return svc, nil
}

// Run starts the transports and the periodic scheduler, then blocks until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.mqtt != nil {
		if err := s.mqtt.SubscribeTelemetry(ctx, s.Telemetry); err != nil {
			return fmt.Errorf("subscribe telemetry: %w", err)
		}
		go s.mqtt.PumpAnomalies(ctx, s.bus)
	}
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go func() {
		if err := s.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorf("scheduler: %v", err)
		}
	}()
	s.log.Infof("fleettrack running")
	<-ctx.Done()
	return nil
}

// RunDetection triggers one detection pass.
func (s *Service) RunDetection(ctx context.Context, role model.Role) (detector.Report, error) {
	return s.Scheduler.RunOnce(ctx, role)
}

// PruneTelemetry removes samples older than the retention horizon.
func (s *Service) PruneTelemetry(ctx context.Context, role model.Role, maxAgeDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	return s.Telemetry.Prune(ctx, role, cutoff)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Errorf("close cache: %v", err)
		}
	}
	if s.arch != nil {
		if err := s.arch.Close(); err != nil {
			return err
		}
	}
	s.bus.Close()
	return nil
}
