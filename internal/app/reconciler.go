/**
 * @description
 * Cron-driven reconciliation of stale pending payments. A visitor who pays
 * on the provider's hosted page but closes the tab before redirect never
 * triggers the verify callable, and webhooks can be lost; this job
 * periodically re-queries the provider for pending records old enough to be
 * suspect and pushes them through the same idempotent completion path.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/internal/store"
)

const reconcileBatchSize = 50

// Reconciler owns the scheduled payment reconciliation job.
type Reconciler struct {
	cron         *cron.Cron
	service      *Service
	repo         store.Repository
	logger       *slog.Logger
	staleAfter   time.Duration
	scheduleSpec string
}

// NewReconciler creates a reconciler that considers pending payments stale
// after staleAfter.
func NewReconciler(service *Service, repo store.Repository, logger *slog.Logger, scheduleSpec string, staleAfter time.Duration) *Reconciler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Reconciler{
		cron:         cron.New(cron.WithChain(cron.Recover(cronLogger))),
		service:      service,
		repo:         repo,
		logger:       logger,
		staleAfter:   staleAfter,
		scheduleSpec: scheduleSpec,
	}
}

// Start registers and starts the cron schedule.
func (r *Reconciler) Start() {
	if _, err := r.cron.AddFunc(r.scheduleSpec, r.RunOnce); err != nil {
		r.logger.Error("failed to schedule payment reconciliation job", "error", err)
		return
	}
	r.logger.Info("scheduled payment reconciliation job", "schedule", r.scheduleSpec)
	r.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}

// RunOnce reconciles one batch of stale pending payments per provider.
func (r *Reconciler) RunOnce() {
	r.logger.Info("starting payment reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-r.staleAfter)
	r.reconcilePaystack(ctx, cutoff)
	r.reconcileStripe(ctx, cutoff)
	r.logger.Info("payment reconciliation job finished")
}

func (r *Reconciler) reconcilePaystack(ctx context.Context, cutoff time.Time) {
	if r.service.paystack == nil {
		return
	}
	records, err := r.repo.ListStalePendingPayments(ctx, domain.ProviderPaystack, cutoff, reconcileBatchSize)
	if err != nil {
		r.logger.Error("failed to list stale paystack payments", "error", err)
		return
	}
	for _, rec := range records {
		result, err := r.service.paystack.VerifyTransaction(ctx, rec.ExternalReference)
		if err != nil {
			r.logger.Warn("paystack verification failed during reconciliation", "reference", rec.ExternalReference, "error", err)
			continue
		}
		if result.Status != "success" {
			continue
		}
		if err := r.service.CompletePayment(ctx, rec.ExternalReference); err != nil {
			r.logger.Error("failed to complete reconciled paystack payment", "reference", rec.ExternalReference, "error", err)
			continue
		}
		r.logger.Info("reconciled stale paystack payment", "reference", rec.ExternalReference)
	}
}

func (r *Reconciler) reconcileStripe(ctx context.Context, cutoff time.Time) {
	if r.service.stripe == nil {
		return
	}
	records, err := r.repo.ListStalePendingPayments(ctx, domain.ProviderStripe, cutoff, reconcileBatchSize)
	if err != nil {
		r.logger.Error("failed to list stale stripe payments", "error", err)
		return
	}
	for _, rec := range records {
		session, err := r.service.stripe.GetCheckoutSession(ctx, rec.ExternalReference)
		if err != nil {
			r.logger.Warn("stripe session lookup failed during reconciliation", "session_id", rec.ExternalReference, "error", err)
			continue
		}
		if session.PaymentStatus != "paid" {
			continue
		}
		if err := r.service.CompletePayment(ctx, rec.ExternalReference); err != nil {
			r.logger.Error("failed to complete reconciled stripe payment", "session_id", rec.ExternalReference, "error", err)
			continue
		}
		r.logger.Info("reconciled stale stripe payment", "session_id", rec.ExternalReference)
	}
}
