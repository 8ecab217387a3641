// Package app wires configuration into a runnable simulation service.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hoppsim/hybrid/config"
	"github.com/hoppsim/hybrid/core/dispatch"
	coremetrics "github.com/hoppsim/hybrid/core/metrics"
	"github.com/hoppsim/hybrid/core/scheduler"
	"github.com/hoppsim/hybrid/infra/logger"
	"github.com/hoppsim/hybrid/infra/metrics"
	"github.com/hoppsim/hybrid/infra/mqtt"
	"github.com/hoppsim/hybrid/infra/seriesfile"
)

// Service owns the wired components of one simulation run.
type Service struct {
	cfg  *config.Config
	log  logger.Logger
	sink coremetrics.Sink

	sched     *scheduler.Scheduler
	publisher *mqtt.Publisher
	logCloser io.Closer
}

// New resolves the dispatch options, loads the series and builds the
// scheduler. Configuration errors surface here, before any solving.
func New(cfg *config.Config) (*Service, error) {
	opts, err := dispatch.Resolve(cfg.Dispatch)
	if err != nil {
		return nil, err
	}

	svc := &Service{cfg: cfg}

	if opts.LogName != "" {
		log, closer, err := logger.NewFileLogger("scheduler", opts.LogName)
		if err != nil {
			return nil, fmt.Errorf("dispatch log: %w", err)
		}
		svc.log = log
		svc.logCloser = closer
	} else {
		svc.log = logger.New("scheduler")
	}

	svc.sink = buildSink(cfg, svc.log)

	series, err := seriesfile.Load(cfg.Simulation.SeriesPath)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	sched, err := scheduler.New(opts, cfg.Battery, series, cfg.Simulation.Period(), svc.log, svc.sink)
	if err != nil {
		return nil, err
	}
	svc.sched = sched

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT, svc.log)
		if err != nil {
			return nil, err
		}
		svc.publisher = pub
	}
	return svc, nil
}

func buildSink(cfg *config.Config, log logger.Logger) coremetrics.Sink {
	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			log.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
			go func() {
				if err := metrics.StartPromServer(cfg.Metrics.PrometheusPort); err != nil {
					log.Errorf("prom server: %v", err)
				}
			}()
		}
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics, log))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return metrics.NewMultiSink(sinks...)
	}
}

// Run executes the simulation and publishes the committed ledger when a
// broker is configured.
func (s *Service) Run(ctx context.Context) (*scheduler.Result, error) {
	res, err := s.sched.Run(ctx)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishCommit(res.RunID, res.Records); err != nil {
			s.log.Errorf("publish commit: %v", err)
		}
	}
	return res, nil
}

// Close releases held resources.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}
