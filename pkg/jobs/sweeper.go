// Package jobs runs the scheduled background work, currently the role
// expiry sweep.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/campusware/gatekeeper/pkg/audit"
	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// RoleSweeper invalidates roles whose end date has passed. Expiry is lazy
// everywhere else, every read filters on valid rows, so the sweep only keeps
// the table tidy and the change feed honest.
type RoleSweeper struct {
	store   *rbac.Store
	logger  *observability.Logger
	auditor audit.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
}

// NewRoleSweeper creates a sweeper. auditor and metrics may be nil.
func NewRoleSweeper(store *rbac.Store, logger *observability.Logger, auditor audit.Logger, metrics *observability.Metrics) *RoleSweeper {
	if auditor == nil {
		auditor = audit.NewNoOpLogger()
	}
	return &RoleSweeper{
		store:   store,
		logger:  logger,
		auditor: auditor,
		metrics: metrics,
	}
}

// Start schedules the sweep. The schedule uses cron syntax, descriptors like
// @hourly included.
func (s *RoleSweeper) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("role sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule role sweep: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("role sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *RoleSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep invalidates all roles past their end date and reports how many rows
// changed.
func (s *RoleSweeper) Sweep(ctx context.Context) (int64, error) {
	expired, err := s.store.ExpireRoles(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire roles: %w", err)
	}
	if expired == 0 {
		return 0, nil
	}

	if s.metrics != nil {
		s.metrics.RolesExpiredTotal.Add(float64(expired))
	}
	s.logger.WithField("expired", expired).Info("expired roles invalidated")

	message := fmt.Sprintf("%d roles expired", expired)
	if err := s.auditor.LogMutation(ctx, audit.EventTypeJobRoleSweep, nil, audit.ResourceTypeRole, "", audit.EventStatusSuccess, message); err != nil {
		s.logger.WithError(err).Warn("failed to audit role sweep")
	}
	return expired, nil
}
