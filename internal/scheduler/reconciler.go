// Package scheduler runs the engine's background work: the periodic
// reconciliation sweep that backstops lost webhooks, and the dispatch pool
// that creates payments with bounded retries.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/openequity/Settlement-Backend/internal/service"
)

// Reconciler periodically re-polls the provider for every non-terminal
// payment. Webhooks are the primary signal; this sweep exists so a dropped
// delivery still converges the payment within one period.
type Reconciler struct {
	settlementService *service.SettlementService
	cron              *cron.Cron
	spec              string
	maxAttempts       int
	concurrency       int64
	log               *logrus.Logger
}

// NewReconciler creates a reconciler. spec is a standard cron expression,
// maxAttempts bounds per-payment reconcile attempts before the payment is
// flagged for manual review, and concurrency caps simultaneous provider
// polls per sweep.
func NewReconciler(settlementService *service.SettlementService, spec string, maxAttempts int, concurrency int64, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		settlementService: settlementService,
		cron:              cron.New(),
		spec:              spec,
		maxAttempts:       maxAttempts,
		concurrency:       concurrency,
		log:               log,
	}
}

// Start registers the sweep and starts the cron runner.
func (r *Reconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		if err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("reconciliation sweep failed")
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	r.log.WithField("schedule", r.spec).Info("reconciliation scheduler started")
	return nil
}

// Stop stops the cron runner and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}

// RunOnce executes a single sweep over all non-terminal payments. Polls run
// concurrently under the semaphore; a failure for one payment does not
// abort the rest, only the first error is reported.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	payments, err := r.settlementService.NonTerminalPayments()
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return nil
	}

	r.log.WithField("count", len(payments)).Info("reconciling non-terminal payments")

	sem := semaphore.NewWeighted(r.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for _, payment := range payments {
		payment := payment
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := r.settlementService.ReconcilePayment(gctx, payment, r.maxAttempts); err != nil {
				r.log.WithError(err).WithField("paymentId", payment.ID).Warn("reconcile attempt failed")
			}
			// Per-payment failures stay local to the sweep.
			return nil
		})
	}
	return g.Wait()
}
