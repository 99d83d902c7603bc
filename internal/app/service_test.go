package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/internal/pricing"
	"github.com/devlaunch/onboarding-service/internal/store"
	"github.com/devlaunch/onboarding-service/pkg/paystackclient"
	"github.com/devlaunch/onboarding-service/pkg/stripeclient"
)

// repoStub is an in-memory store.Repository.
type repoStub struct {
	profiles      map[string]domain.UserProfile
	projects      map[uuid.UUID]*domain.Project
	payments      map[string]*domain.PaymentRecord
	statusAppends []string
	adminNotes    int
	userMessages  int
}

func newRepoStub() *repoStub {
	return &repoStub{
		profiles: make(map[string]domain.UserProfile),
		projects: make(map[uuid.UUID]*domain.Project),
		payments: make(map[string]*domain.PaymentRecord),
	}
}

func (r *repoStub) UpsertUserProfile(ctx context.Context, p domain.UserProfile) error {
	r.profiles[p.UserID] = p
	return nil
}

func (r *repoStub) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &p, nil
}

func (r *repoStub) CreateProject(ctx context.Context, project *domain.Project) error {
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	r.projects[project.ID] = project
	return nil
}

func (r *repoStub) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	return p, nil
}

func (r *repoStub) AppendProjectStatus(ctx context.Context, projectID uuid.UUID, status, message, changedBy string) error {
	p, ok := r.projects[projectID]
	if !ok {
		return store.ErrProjectNotFound
	}
	p.Status = status
	r.statusAppends = append(r.statusAppends, status)
	return nil
}

func (r *repoStub) CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord) error {
	r.payments[record.ExternalReference] = record
	return nil
}

func (r *repoStub) GetPaymentByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	rec, ok := r.payments[reference]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	return rec, nil
}

func (r *repoStub) MarkPaymentCompleted(ctx context.Context, reference string) (*domain.PaymentRecord, bool, error) {
	rec, ok := r.payments[reference]
	if !ok {
		return nil, false, store.ErrPaymentNotFound
	}
	if rec.Status == domain.PaymentCompleted {
		return rec, false, nil
	}
	rec.Status = domain.PaymentCompleted
	if p, ok := r.projects[rec.ProjectID]; ok {
		p.PaymentStatus = domain.ProjectPaid
	}
	return rec, true, nil
}

func (r *repoStub) ListStalePendingPayments(ctx context.Context, provider string, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, rec := range r.payments {
		if rec.Provider == provider && rec.Status == domain.PaymentPending {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *repoStub) CreateAdminNotification(ctx context.Context, n *domain.AdminNotification) error {
	r.adminNotes++
	return nil
}

func (r *repoStub) CreateUserMessage(ctx context.Context, m *domain.UserMessage) error {
	r.userMessages++
	return nil
}

// publisherStub counts publishes per routing key.
type publisherStub struct {
	published map[string]int
}

func newPublisherStub() *publisherStub {
	return &publisherStub{published: make(map[string]int)}
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.published[routingKey]++
	return nil
}

func (p *publisherStub) Close() {}

// stripeStub captures the session params it was asked to create.
type stripeStub struct {
	lastParams stripeclient.CreateSessionParams
	session    stripeclient.CheckoutSession
	err        error
}

func (s *stripeStub) CreateCheckoutSession(ctx context.Context, params stripeclient.CreateSessionParams) (*stripeclient.CheckoutSession, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	out := s.session
	return &out, nil
}

func (s *stripeStub) GetCheckoutSession(ctx context.Context, sessionID string) (*stripeclient.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.session
	return &out, nil
}

// paystackStub captures initialization requests and serves canned verdicts.
type paystackStub struct {
	lastInit    paystackclient.InitializeRequest
	initResult  paystackclient.InitializeResult
	initErr     error
	verifyByRef map[string]string // reference -> status
	verifyErr   error
}

func (p *paystackStub) InitializeTransaction(ctx context.Context, req paystackclient.InitializeRequest) (*paystackclient.InitializeResult, error) {
	p.lastInit = req
	if p.initErr != nil {
		return nil, p.initErr
	}
	out := p.initResult
	return &out, nil
}

func (p *paystackStub) VerifyTransaction(ctx context.Context, reference string) (*paystackclient.VerifyResult, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	status := p.verifyByRef[reference]
	if status == "" {
		status = "abandoned"
	}
	return &paystackclient.VerifyResult{Status: status, Reference: reference, Amount: 5250000, Currency: "NGN"}, nil
}

// emailStub counts sends per template.
type emailStub struct {
	sends map[string]int
	err   error
}

func newEmailStub() *emailStub { return &emailStub{sends: make(map[string]int)} }

func (e *emailStub) Send(ctx context.Context, templateID string, params map[string]string) error {
	if e.err != nil {
		return e.err
	}
	e.sends[templateID]++
	return nil
}

func serviceCatalog() *pricing.Catalog {
	return pricing.NewCatalog([]pricing.CatalogEntry{
		{ID: "a", Category: "vision", Label: "Item A", BaseUSDCents: 1500},
		{ID: "b", Category: "users", Label: "Item B", BaseUSDCents: 2000},
	})
}

type serviceDeps struct {
	repo      *repoStub
	stripe    *stripeStub
	paystack  *paystackStub
	email     *emailStub
	publisher *publisherStub
}

func newTestService(deps serviceDeps) *Service {
	var stripe StripeGateway
	if deps.stripe != nil {
		stripe = deps.stripe
	}
	var paystack PaystackGateway
	if deps.paystack != nil {
		paystack = deps.paystack
	}
	var email EmailSender
	if deps.email != nil {
		email = deps.email
	}
	return NewService(
		deps.repo, stripe, paystack, email, deps.publisher,
		serviceCatalog(),
		EmailTemplates{Welcome: "tpl_welcome", Submission: "tpl_sub", AdminAlert: "tpl_admin", Status: "tpl_status", Receipt: "tpl_receipt"},
		"admin-uid", "admin@example.com", "https://app.example.com",
	)
}

func TestCreateStripeCheckoutUnconfiguredProvider(t *testing.T) {
	repo := newRepoStub()
	svc := newTestService(serviceDeps{repo: repo, publisher: newPublisherStub()})

	_, err := svc.CreateStripeCheckout(context.Background(), "user-1", CreateCheckoutInput{
		ProjectID: uuid.New(),
		ItemIDs:   []string{"a"},
	})
	if !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
	if len(repo.payments) != 0 {
		t.Fatal("no payment record may be created when the provider is unconfigured")
	}
}

func TestCreateStripeCheckoutRecomputesAmountFromCatalog(t *testing.T) {
	repo := newRepoStub()
	stripe := &stripeStub{session: stripeclient.CheckoutSession{ID: "cs_123", URL: "https://stripe.example/cs_123"}}
	svc := newTestService(serviceDeps{repo: repo, stripe: stripe, publisher: newPublisherStub()})

	result, err := svc.CreateStripeCheckout(context.Background(), "user-1", CreateCheckoutInput{
		ProjectID: uuid.New(),
		ItemIDs:   []string{"a", "b", "a"}, // duplicate id must not double-charge
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID != "cs_123" {
		t.Fatalf("unexpected session id %q", result.SessionID)
	}

	if len(stripe.lastParams.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(stripe.lastParams.LineItems))
	}
	var sum int64
	for _, li := range stripe.lastParams.LineItems {
		sum += li.UnitAmountMinor * li.Quantity
	}
	if sum != 3500 {
		t.Fatalf("expected charge of 3500 cents from the catalog, got %d", sum)
	}

	rec, ok := repo.payments["cs_123"]
	if !ok {
		t.Fatal("expected a pending payment record keyed by the session id")
	}
	if rec.Status != domain.PaymentPending || rec.Amount != 3500 || rec.Currency != "USD" {
		t.Fatalf("unexpected payment record: %+v", rec)
	}
}

func TestCreateStripeCheckoutEmptyCart(t *testing.T) {
	repo := newRepoStub()
	stripe := &stripeStub{}
	svc := newTestService(serviceDeps{repo: repo, stripe: stripe, publisher: newPublisherStub()})

	_, err := svc.CreateStripeCheckout(context.Background(), "user-1", CreateCheckoutInput{ProjectID: uuid.New()})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateStripeCheckoutProviderFailureLeavesNoRecord(t *testing.T) {
	repo := newRepoStub()
	stripe := &stripeStub{err: errors.New("stripe is down")}
	svc := newTestService(serviceDeps{repo: repo, stripe: stripe, publisher: newPublisherStub()})

	_, err := svc.CreateStripeCheckout(context.Background(), "user-1", CreateCheckoutInput{
		ProjectID: uuid.New(),
		ItemIDs:   []string{"a"},
	})
	if err == nil {
		t.Fatal("expected an error when the provider call fails")
	}
	if len(repo.payments) != 0 {
		t.Fatal("a failed provider call must not leave a partial payment record")
	}
}

func TestCreatePaystackCheckoutConvertsToKobo(t *testing.T) {
	repo := newRepoStub()
	repo.profiles["user-1"] = domain.UserProfile{UserID: "user-1", Email: "client@example.com"}
	paystack := &paystackStub{initResult: paystackclient.InitializeResult{
		Reference: "ps_ref_1", AuthorizationURL: "https://paystack.example/auth", AccessCode: "AC1",
	}}
	svc := newTestService(serviceDeps{repo: repo, paystack: paystack, publisher: newPublisherStub()})

	result, err := svc.CreatePaystackCheckout(context.Background(), "user-1", CreateCheckoutInput{
		ProjectID: uuid.New(),
		ItemIDs:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// $35.00 at 1500 NGN/USD is 5,250,000 kobo.
	if paystack.lastInit.Amount != 5250000 {
		t.Fatalf("expected 5250000 kobo, got %d", paystack.lastInit.Amount)
	}
	if paystack.lastInit.Email != "client@example.com" {
		t.Fatalf("expected profile email fallback, got %q", paystack.lastInit.Email)
	}

	rec, ok := repo.payments[result.Reference]
	if !ok {
		t.Fatal("expected a payment record keyed by the paystack reference")
	}
	if rec.Currency != "NGN" || rec.Amount != 5250000 || rec.Status != domain.PaymentPending {
		t.Fatalf("unexpected payment record: %+v", rec)
	}
}

func TestVerifyPaystackPaymentIsIdempotent(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, UserID: "user-1", PaymentStatus: domain.ProjectUnpaid}
	repo.payments["ps_ref_1"] = &domain.PaymentRecord{
		ID: uuid.New(), UserID: "user-1", ProjectID: projectID,
		Provider: domain.ProviderPaystack, ExternalReference: "ps_ref_1",
		Amount: 5250000, Currency: "NGN", Status: domain.PaymentPending,
	}
	paystack := &paystackStub{verifyByRef: map[string]string{"ps_ref_1": "success"}}
	publisher := newPublisherStub()
	svc := newTestService(serviceDeps{repo: repo, paystack: paystack, publisher: publisher})

	for i := 0; i < 2; i++ {
		result, err := svc.VerifyPaystackPayment(context.Background(), "ps_ref_1")
		if err != nil {
			t.Fatalf("verify %d: unexpected error: %v", i, err)
		}
		if !result.Success {
			t.Fatalf("verify %d: expected success", i)
		}
	}

	if repo.payments["ps_ref_1"].Status != domain.PaymentCompleted {
		t.Fatal("payment not completed")
	}
	if repo.projects[projectID].PaymentStatus != domain.ProjectPaid {
		t.Fatal("project not marked paid")
	}
	if publisher.published[domain.PaymentCompletedKey] != 1 {
		t.Fatalf("expected exactly one completion event, got %d", publisher.published[domain.PaymentCompletedKey])
	}
}

func TestVerifyPaystackPaymentNonSuccessDoesNotComplete(t *testing.T) {
	repo := newRepoStub()
	repo.payments["ps_ref_2"] = &domain.PaymentRecord{
		ID: uuid.New(), ExternalReference: "ps_ref_2", Provider: domain.ProviderPaystack,
		Status: domain.PaymentPending,
	}
	paystack := &paystackStub{verifyByRef: map[string]string{"ps_ref_2": "abandoned"}}
	publisher := newPublisherStub()
	svc := newTestService(serviceDeps{repo: repo, paystack: paystack, publisher: publisher})

	result, err := svc.VerifyPaystackPayment(context.Background(), "ps_ref_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected non-success verdict")
	}
	if repo.payments["ps_ref_2"].Status != domain.PaymentPending {
		t.Fatal("non-success verification must not complete the payment")
	}
	if publisher.published[domain.PaymentCompletedKey] != 0 {
		t.Fatal("no completion event may be published")
	}
}

func TestSubmitProjectRecomputesTotalServerSide(t *testing.T) {
	repo := newRepoStub()
	publisher := newPublisherStub()
	svc := newTestService(serviceDeps{repo: repo, publisher: publisher})

	project, err := svc.SubmitProject(context.Background(), "user-1", SubmitProjectInput{
		ContactEmail: "client@example.com",
		ContactName:  "Client",
		Phases:       map[string]any{"vision": map[string]any{"summary": "an app"}},
		ItemIDs:      []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if project.TotalAmount != 3500 {
		t.Fatalf("expected server-computed total of 3500 cents, got %d", project.TotalAmount)
	}
	if project.Status != "pending" || project.PaymentStatus != domain.ProjectUnpaid {
		t.Fatalf("unexpected initial statuses: %s / %s", project.Status, project.PaymentStatus)
	}
	for _, it := range project.CartItems {
		// Snapshot prices come from the catalog, never the client.
		if it.ID == "a" && it.BaseUSDCents != 1500 {
			t.Fatalf("snapshot price for %q is not catalog price: %d", it.ID, it.BaseUSDCents)
		}
	}
	if publisher.published[domain.ProjectSubmittedKey] != 1 {
		t.Fatalf("expected one submission event, got %d", publisher.published[domain.ProjectSubmittedKey])
	}
}

func TestSubmitProjectUnknownItem(t *testing.T) {
	svc := newTestService(serviceDeps{repo: newRepoStub(), publisher: newPublisherStub()})

	_, err := svc.SubmitProject(context.Background(), "user-1", SubmitProjectInput{
		ContactEmail: "client@example.com",
		ItemIDs:      []string{"ghost"},
	})
	var unknown *pricing.ErrUnknownItem
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestUpdateProjectStatusRejectsInvalidStatus(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, Status: "pending"}
	svc := newTestService(serviceDeps{repo: repo, email: newEmailStub(), publisher: newPublisherStub()})

	err := svc.UpdateProjectStatus(context.Background(), "admin-uid", projectID, "bogus-status", "")
	var invalid *ErrInvalidStatus
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	for _, want := range domain.ProjectStatuses {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error must list valid status %q: %s", want, err.Error())
		}
	}
	if repo.projects[projectID].Status != "pending" {
		t.Fatal("project must be unchanged after an invalid status update")
	}
	if len(repo.statusAppends) != 0 {
		t.Fatal("no status history may be written for an invalid status")
	}
}

func TestUpdateProjectStatusRequiresAdmin(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, Status: "pending"}
	svc := newTestService(serviceDeps{repo: repo, publisher: newPublisherStub()})

	err := svc.UpdateProjectStatus(context.Background(), "user-1", projectID, "in_progress", "")
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestUpdateProjectStatusAppendsHistoryAndEmails(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, Status: "pending", ContactEmail: "client@example.com", UserID: "user-1"}
	email := newEmailStub()
	svc := newTestService(serviceDeps{repo: repo, email: email, publisher: newPublisherStub()})

	if err := svc.UpdateProjectStatus(context.Background(), "admin-uid", projectID, "in_progress", "started"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.projects[projectID].Status != "in_progress" {
		t.Fatalf("status not applied: %s", repo.projects[projectID].Status)
	}
	if email.sends["tpl_status"] != 1 {
		t.Fatalf("expected one status email, got %d", email.sends["tpl_status"])
	}
}

func TestUpdateProjectStatusEmailFailureDoesNotFailUpdate(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, Status: "pending", ContactEmail: "client@example.com"}
	email := newEmailStub()
	email.err = errors.New("smtp exploded")
	svc := newTestService(serviceDeps{repo: repo, email: email, publisher: newPublisherStub()})

	if err := svc.UpdateProjectStatus(context.Background(), "admin-uid", projectID, "completed", ""); err != nil {
		t.Fatalf("a best-effort email failure must not fail the update: %v", err)
	}
	if repo.projects[projectID].Status != "completed" {
		t.Fatal("status update lost")
	}
}

func TestGetProjectForUserHidesForeignProjects(t *testing.T) {
	repo := newRepoStub()
	projectID := uuid.New()
	repo.projects[projectID] = &domain.Project{ID: projectID, UserID: "owner"}
	svc := newTestService(serviceDeps{repo: repo, publisher: newPublisherStub()})

	if _, err := svc.GetProjectForUser(context.Background(), "owner", projectID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := svc.GetProjectForUser(context.Background(), "admin-uid", projectID); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
	if _, err := svc.GetProjectForUser(context.Background(), "stranger", projectID); !errors.Is(err, store.ErrProjectNotFound) {
		t.Fatalf("expected not-found for a foreign reader, got %v", err)
	}
}

func TestBootstrapUserUpsertsProfileAndWelcomes(t *testing.T) {
	repo := newRepoStub()
	email := newEmailStub()
	svc := newTestService(serviceDeps{repo: repo, email: email, publisher: newPublisherStub()})

	event := domain.UserCreatedEvent{UserID: "user-9", Email: "new@example.com", Name: "New User"}
	for i := 0; i < 2; i++ {
		if err := svc.BootstrapUser(context.Background(), event); err != nil {
			t.Fatalf("bootstrap %d failed: %v", i, err)
		}
	}
	if _, ok := repo.profiles["user-9"]; !ok {
		t.Fatal("profile not created")
	}
}

func TestSendTypedEmailUnconfigured(t *testing.T) {
	svc := newTestService(serviceDeps{repo: newRepoStub(), publisher: newPublisherStub()})

	err := svc.SendTypedEmail(context.Background(), "user-1", SendEmailInput{Type: "welcome", RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrEmailNotConfigured) {
		t.Fatalf("expected ErrEmailNotConfigured, got %v", err)
	}
}

func TestSendTypedEmailUnknownType(t *testing.T) {
	svc := newTestService(serviceDeps{repo: newRepoStub(), email: newEmailStub(), publisher: newPublisherStub()})

	err := svc.SendTypedEmail(context.Background(), "user-1", SendEmailInput{Type: "carrier-pigeon", RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrUnknownEmailType) {
		t.Fatalf("expected ErrUnknownEmailType, got %v", err)
	}
}
