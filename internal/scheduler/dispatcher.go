package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/service"
)

// Dispatcher owns asynchronous payment creation. Requests enter through
// Submit, workers drain the queue, and each attempt runs under a bounded
// exponential backoff. Submitted requests are remembered per payable so a
// terminal failure can be re-queued for another attempt.
type Dispatcher struct {
	settlementService *service.SettlementService
	queue             chan service.CreatePaymentRequest
	workers           int
	maxAttempts       uint64
	baseBackoff       time.Duration
	log               *logrus.Logger

	mu      sync.Mutex
	pending map[string]service.CreatePaymentRequest
}

// NewDispatcher creates a dispatcher with the given worker count and retry
// bounds. queueSize bounds Submit backpressure.
func NewDispatcher(settlementService *service.SettlementService, workers, queueSize int, maxAttempts uint64, baseBackoff time.Duration, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		settlementService: settlementService,
		queue:             make(chan service.CreatePaymentRequest, queueSize),
		workers:           workers,
		maxAttempts:       maxAttempts,
		baseBackoff:       baseBackoff,
		log:               log,
		pending:           make(map[string]service.CreatePaymentRequest),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and the
// queue drains.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case req := <-d.queue:
					d.process(gctx, req)
				}
			}
		})
	}
	return g.Wait()
}

// Submit enqueues a payment request for asynchronous creation. The request
// is remembered until the payable settles so failure re-queues can replay
// it without the caller resubmitting bank details.
func (d *Dispatcher) Submit(ctx context.Context, req service.CreatePaymentRequest) error {
	d.mu.Lock()
	d.pending[req.Target.PayableID] = req
	d.mu.Unlock()

	select {
	case d.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequeuePayable re-enqueues the remembered request for a payable whose
// payment failed terminally. Unknown payables are logged and dropped — the
// request predates this process or was already settled.
func (d *Dispatcher) RequeuePayable(target model.SettlementTarget) {
	d.mu.Lock()
	req, ok := d.pending[target.PayableID]
	d.mu.Unlock()
	if !ok {
		d.log.WithField("payableId", target.PayableID).Warn("no pending request to requeue for failed payable")
		return
	}

	select {
	case d.queue <- req:
		d.log.WithField("payableId", target.PayableID).Info("payable re-queued after failed payment")
	default:
		d.log.WithField("payableId", target.PayableID).Error("dispatch queue full, dropping requeue")
	}
}

// SettlePayable drops the remembered request for a payable whose payment
// succeeded. Bank details are not kept around longer than needed.
func (d *Dispatcher) SettlePayable(target model.SettlementTarget) {
	d.mu.Lock()
	delete(d.pending, target.PayableID)
	d.mu.Unlock()
}

// process creates one payment with bounded exponential backoff. Provider
// creation failures retry; a payable already in flight is a success from
// the dispatcher's point of view.
func (d *Dispatcher) process(ctx context.Context, req service.CreatePaymentRequest) {
	backoff := retry.WithMaxRetries(d.maxAttempts, retry.NewExponential(d.baseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := d.settlementService.CreatePayment(ctx, req)
		if errors.Is(err, apperrors.ErrFailedToCreateTransfer) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		// Keep the pending entry: terminal failure of this payment
		// re-queues it, SettlePayable clears it on success.
	case errors.Is(err, apperrors.ErrPayableInFlight):
		// A payment for this payable already exists; the state machine
		// will resolve it and requeue if needed.
		d.log.WithField("payableId", req.Target.PayableID).Debug("payable already in flight, dispatch skipped")
	default:
		d.log.WithError(err).WithField("payableId", req.Target.PayableID).Error("payment dispatch exhausted retries")
	}
}
