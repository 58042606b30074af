// Package reconcile periodically audits the confirmed counter of every event
// against the participation-request ledger.
package reconcile

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/sirupsen/logrus"
)

type auditor interface {
	Audit(ctx context.Context) ([]model.CountMismatch, error)
}

// Scheduler runs the audit on a fixed interval. It only reports; it never
// rewrites counters.
type Scheduler struct {
	auditor  auditor
	interval time.Duration
	log      logrus.FieldLogger
}

// New builds a Scheduler that audits every interval, which must be positive.
func New(auditor auditor, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		interval: interval,
		log:      log.WithField("component", "reconciler"),
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("reconciler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	mismatches, err := s.auditor.Audit(ctx)
	if err != nil {
		s.log.WithError(err).Error("audit confirmed counts")
		return
	}

	for _, m := range mismatches {
		s.log.WithFields(logrus.Fields{
			"event_id":     m.EventID,
			"stored":       m.Stored,
			"ledger_count": m.LedgerCount,
		}).Error("confirmed count does not match ledger")
	}
	if len(mismatches) == 0 {
		s.log.Debug("confirmed counts consistent")
	}
}
