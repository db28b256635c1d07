// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/proxypanel/internal/logging"
)

// Job is one scheduled unit of work. It receives the service context.
type Job func(ctx context.Context) error

// CronService runs a job on a cron schedule while it is being served.
type CronService struct {
	name     string
	schedule string
	job      Job
	timeout  time.Duration
}

// NewCronService validates schedule (standard five fields or a descriptor
// such as "@every 30s") and returns the service. Each run is bounded by
// timeout when it is positive.
func NewCronService(name, schedule string, timeout time.Duration, job Job) (*CronService, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid %s schedule %q: %w", name, schedule, err)
	}
	return &CronService{name: name, schedule: schedule, job: job, timeout: timeout}, nil
}

// Serve implements suture.Service. Runs never overlap; a run still going when
// the next one is due is skipped.
func (s *CronService) Serve(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule %s: %w", s.name, err)
	}

	c.Start()
	logging.Debug().Str("service", s.name).Str("schedule", s.schedule).Msg("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *CronService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.job(ctx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Scheduled job failed")
	}
}

// String names the service in supervisor logs.
func (s *CronService) String() string {
	return s.name
}
