package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/pkg/stripeclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingPayment(provider, reference string, projectID uuid.UUID) *domain.PaymentRecord {
	return &domain.PaymentRecord{
		ID: uuid.New(), UserID: "user-1", ProjectID: projectID,
		Provider: provider, ExternalReference: reference,
		Amount: 3500, Currency: "USD", Status: domain.PaymentPending,
	}
}

func TestRunOnceCompletesPaidStalePayments(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, UserID: "user-1"}
	repo.payments["ps_paid"] = pendingPayment(domain.ProviderPaystack, "ps_paid", projectID)
	repo.payments["ps_abandoned"] = pendingPayment(domain.ProviderPaystack, "ps_abandoned", projectID)

	paystack := &paystackStub{verifyByRef: map[string]string{
		"ps_paid":      "success",
		"ps_abandoned": "abandoned",
	}}
	publisher := newPublisherStub()
	svc := newTestService(serviceDeps{repo: repo, paystack: paystack, publisher: publisher})

	r := NewReconciler(svc, repo, discardLogger(), "@every 30m", time.Hour)
	r.RunOnce()

	if repo.payments["ps_paid"].Status != domain.PaymentCompleted {
		t.Fatal("paid stale payment was not reconciled")
	}
	if repo.payments["ps_abandoned"].Status != domain.PaymentPending {
		t.Fatal("abandoned payment must stay pending")
	}
	if publisher.published[domain.PaymentCompletedKey] != 1 {
		t.Fatalf("expected one completion event, got %d", publisher.published[domain.PaymentCompletedKey])
	}
}

func TestRunOnceReconcilesStripeSessions(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, UserID: "user-1"}
	repo.payments["cs_paid"] = pendingPayment(domain.ProviderStripe, "cs_paid", projectID)

	stripe := &stripeStub{session: stripeclient.CheckoutSession{ID: "cs_paid", PaymentStatus: "paid"}}
	publisher := newPublisherStub()
	svc := newTestService(serviceDeps{repo: repo, stripe: stripe, publisher: publisher})

	r := NewReconciler(svc, repo, discardLogger(), "@every 30m", time.Hour)
	r.RunOnce()

	if repo.payments["cs_paid"].Status != domain.PaymentCompleted {
		t.Fatal("paid stripe session was not reconciled")
	}
	if repo.projects[projectID].PaymentStatus != domain.ProjectPaid {
		t.Fatal("project not marked paid during reconciliation")
	}
}

func TestRunOnceSkipsUnconfiguredProviders(t *testing.T) {
	repo := newRepoStub()
	repo.payments["ps_ref"] = pendingPayment(domain.ProviderPaystack, "ps_ref", uuid.New())
	svc := newTestService(serviceDeps{repo: repo, publisher: newPublisherStub()})

	r := NewReconciler(svc, repo, discardLogger(), "@every 30m", time.Hour)
	r.RunOnce()

	if repo.payments["ps_ref"].Status != domain.PaymentPending {
		t.Fatal("reconciliation must be a no-op when no provider is configured")
	}
}
