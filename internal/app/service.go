/**
 * @description
 * This file contains the core business logic of the onboarding-service:
 * checkout session creation against Stripe and Paystack, payment
 * verification and completion, project submission with server-authoritative
 * total recomputation, and admin status updates.
 *
 * Money rules enforced here:
 * - Charge amounts are always recomputed from the price catalog by line-item
 *   id. Prices or totals present in client payloads are never read.
 * - A payment record is only written after the provider call succeeds, so a
 *   provider failure leaves no partial state behind.
 * - The pending -> completed transition is delegated to the store, which
 *   performs it conditionally and atomically with the project's paid flag.
 *
 * @dependencies
 * - internal/domain, internal/pricing, internal/store: Domain models, price
 *   catalog, and persistence.
 * - pkg/stripeclient, pkg/paystackclient, pkg/emailclient, pkg/rabbitmq:
 *   External collaborators.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/internal/pricing"
	"github.com/devlaunch/onboarding-service/internal/store"
	"github.com/devlaunch/onboarding-service/pkg/paystackclient"
	"github.com/devlaunch/onboarding-service/pkg/rabbitmq"
	"github.com/devlaunch/onboarding-service/pkg/stripeclient"
)

var (
	ErrProviderNotConfigured = errors.New("payment provider is not configured")
	ErrEmailNotConfigured    = errors.New("email delivery is not configured")
	ErrEmptyCart             = errors.New("cart contains no items")
	ErrMissingEmail          = errors.New("a recipient email address is required")
	ErrNotAdmin              = errors.New("caller is not an administrator")
	ErrUnknownEmailType      = errors.New("unknown email type")
)

// ErrInvalidStatus is returned when a status update names a value outside the
// allowed set. The message lists the valid statuses for the caller.
type ErrInvalidStatus struct {
	Status string
}

func (e *ErrInvalidStatus) Error() string {
	return fmt.Sprintf("invalid project status %q; valid statuses are: %s", e.Status, strings.Join(domain.ProjectStatuses, ", "))
}

// StripeGateway is the subset of the Stripe client the service uses.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, params stripeclient.CreateSessionParams) (*stripeclient.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripeclient.CheckoutSession, error)
}

// PaystackGateway is the subset of the Paystack client the service uses.
type PaystackGateway interface {
	InitializeTransaction(ctx context.Context, req paystackclient.InitializeRequest) (*paystackclient.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystackclient.VerifyResult, error)
}

// EmailSender dispatches one templated email.
type EmailSender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// EmailTemplates maps email types to provider template ids.
type EmailTemplates struct {
	Welcome    string
	Submission string
	AdminAlert string
	Status     string
	Receipt    string
}

// Service implements the onboarding business logic. Gateways may be nil when
// the corresponding provider is unconfigured; the affected operations then
// fail with ErrProviderNotConfigured / ErrEmailNotConfigured.
type Service struct {
	repo       store.Repository
	stripe     StripeGateway
	paystack   PaystackGateway
	email      EmailSender
	publisher  rabbitmq.Publisher
	catalog    *pricing.Catalog
	templates  EmailTemplates
	adminUID   string
	adminEmail string
	appBaseURL string
}

// NewService creates the application service with its dependencies.
func NewService(
	repo store.Repository,
	stripe StripeGateway,
	paystack PaystackGateway,
	email EmailSender,
	publisher rabbitmq.Publisher,
	catalog *pricing.Catalog,
	templates EmailTemplates,
	adminUID, adminEmail, appBaseURL string,
) *Service {
	if publisher == nil {
		publisher = &rabbitmq.NoopPublisher{}
	}
	return &Service{
		repo:       repo,
		stripe:     stripe,
		paystack:   paystack,
		email:      email,
		publisher:  publisher,
		catalog:    catalog,
		templates:  templates,
		adminUID:   adminUID,
		adminEmail: adminEmail,
		appBaseURL: appBaseURL,
	}
}

// CreateCheckoutInput identifies what is being paid for. Only the item ids
// matter for pricing; anything else the client says about money is ignored.
type CreateCheckoutInput struct {
	ProjectID uuid.UUID `json:"project_id"`
	ItemIDs   []string  `json:"item_ids"`
	Email     string    `json:"email,omitempty"`
}

// StripeCheckoutResult carries the handles the client needs to redirect to
// Stripe's hosted checkout.
type StripeCheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PaystackCheckoutResult carries the handles for Paystack's hosted checkout.
type PaystackCheckoutResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// CreateStripeCheckout recomputes the charge from the catalog, opens a Stripe
// Checkout Session in USD cents, and records a pending payment.
func (s *Service) CreateStripeCheckout(ctx context.Context, userID string, in CreateCheckoutInput) (*StripeCheckoutResult, error) {
	if s.stripe == nil {
		return nil, ErrProviderNotConfigured
	}
	entries, totalCents, err := s.resolveItems(in.ItemIDs)
	if err != nil {
		return nil, err
	}

	lineItems := make([]stripeclient.SessionLineItem, len(entries))
	for i, e := range entries {
		lineItems[i] = stripeclient.SessionLineItem{
			Name:            e.Label,
			Currency:        "USD",
			UnitAmountMinor: e.BaseUSDCents,
			Quantity:        1,
		}
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripeclient.CreateSessionParams{
		SuccessURL:        s.appBaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.appBaseURL + "/payment/cancelled",
		CustomerEmail:     in.Email,
		ClientReferenceID: in.ProjectID.String(),
		Metadata:          map[string]string{"project_id": in.ProjectID.String(), "user_id": userID},
		LineItems:         lineItems,
	})
	if err != nil {
		log.Printf("level=error component=app op=stripe_checkout project_id=%s err=%v", in.ProjectID, err)
		return nil, fmt.Errorf("stripe checkout session creation failed: %w", err)
	}

	record := &domain.PaymentRecord{
		ID:                uuid.New(),
		UserID:            userID,
		ProjectID:         in.ProjectID,
		Provider:          domain.ProviderStripe,
		ExternalReference: session.ID,
		Amount:            totalCents,
		Currency:          "USD",
		Status:            domain.PaymentPending,
	}
	if err := s.repo.CreatePaymentRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist stripe payment record: %w", err)
	}

	log.Printf("level=info component=app op=stripe_checkout outcome=created project_id=%s session_id=%s amount_cents=%d", in.ProjectID, session.ID, totalCents)
	return &StripeCheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePaystackCheckout recomputes the charge from the catalog, converts it
// to kobo at the NGN display rate, and initializes a Paystack transaction.
func (s *Service) CreatePaystackCheckout(ctx context.Context, userID string, in CreateCheckoutInput) (*PaystackCheckoutResult, error) {
	if s.paystack == nil {
		return nil, ErrProviderNotConfigured
	}
	_, totalCents, err := s.resolveItems(in.ItemIDs)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		profile, err := s.repo.GetUserProfile(ctx, userID)
		if err != nil {
			return nil, ErrMissingEmail
		}
		email = profile.Email
	}

	amountKobo := pricing.Localize(totalCents, "NG").AmountMinor

	result, err := s.paystack.InitializeTransaction(ctx, paystackclient.InitializeRequest{
		Email:       email,
		Amount:      amountKobo,
		Currency:    "NGN",
		CallbackURL: s.appBaseURL + "/payment/success",
		Metadata:    map[string]string{"project_id": in.ProjectID.String(), "user_id": userID},
	})
	if err != nil {
		log.Printf("level=error component=app op=paystack_checkout project_id=%s err=%v", in.ProjectID, err)
		return nil, fmt.Errorf("paystack transaction initialization failed: %w", err)
	}

	record := &domain.PaymentRecord{
		ID:                uuid.New(),
		UserID:            userID,
		ProjectID:         in.ProjectID,
		Provider:          domain.ProviderPaystack,
		ExternalReference: result.Reference,
		Amount:            amountKobo,
		Currency:          "NGN",
		Status:            domain.PaymentPending,
	}
	if err := s.repo.CreatePaymentRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist paystack payment record: %w", err)
	}

	log.Printf("level=info component=app op=paystack_checkout outcome=created project_id=%s reference=%s amount_kobo=%d", in.ProjectID, result.Reference, amountKobo)
	return &PaystackCheckoutResult{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	}, nil
}

// VerificationResult reports the outcome of an explicit verification call.
type VerificationResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// VerifyPaystackPayment re-queries Paystack for the transaction's status and,
// on success, completes the matching payment record. Safe to call repeatedly
// for the same reference.
func (s *Service) VerifyPaystackPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	if s.paystack == nil {
		return nil, ErrProviderNotConfigured
	}

	result, err := s.paystack.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Printf("level=error component=app op=verify_payment reference=%s err=%v", reference, err)
		return nil, fmt.Errorf("paystack verification failed: %w", err)
	}

	if result.Status != "success" {
		return &VerificationResult{Success: false, Status: result.Status, Amount: result.Amount}, nil
	}

	if err := s.CompletePayment(ctx, reference); err != nil {
		return nil, err
	}
	return &VerificationResult{Success: true, Status: result.Status, Amount: result.Amount}, nil
}

// CompletePayment transitions a payment to completed and the owning project
// to paid. Idempotent: completing an already-completed reference changes
// nothing and publishes nothing.
func (s *Service) CompletePayment(ctx context.Context, reference string) error {
	record, updated, err := s.repo.MarkPaymentCompleted(ctx, reference)
	if err != nil {
		return err
	}
	if !updated {
		log.Printf("level=info component=app op=complete_payment outcome=already_completed reference=%s", reference)
		return nil
	}

	log.Printf("level=info component=app op=complete_payment outcome=completed reference=%s project_id=%s", reference, record.ProjectID)

	event := domain.PaymentCompletedEvent{
		ProjectID:         record.ProjectID,
		UserID:            record.UserID,
		Provider:          record.Provider,
		ExternalReference: record.ExternalReference,
		Amount:            record.Amount,
		Currency:          record.Currency,
		CompletedAt:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, domain.EventsExchange, domain.PaymentCompletedKey, event); err != nil {
		log.Printf("level=warn component=app op=complete_payment msg=\"event publish failed\" reference=%s err=%v", reference, err)
	}
	return nil
}

// SubmitProjectInput is the client's submission payload. Any total or price
// fields a client might send are absent here on purpose; pricing comes from
// the catalog.
type SubmitProjectInput struct {
	ContactEmail string         `json:"contact_email"`
	ContactName  string         `json:"contact_name"`
	Phases       map[string]any `json:"phases"`
	ItemIDs      []string       `json:"item_ids"`
}

// SubmitProject persists a newly completed onboarding flow as a project with
// a server-computed total, then announces it for notification fan-out.
func (s *Service) SubmitProject(ctx context.Context, userID string, in SubmitProjectInput) (*domain.Project, error) {
	if strings.TrimSpace(in.ContactEmail) == "" {
		return nil, ErrMissingEmail
	}

	var (
		items []domain.LineItem
		total int64
	)
	if len(in.ItemIDs) > 0 {
		entries, totalCents, err := s.resolveItems(in.ItemIDs)
		if err != nil {
			return nil, err
		}
		total = totalCents
		items = make([]domain.LineItem, len(entries))
		for i, e := range entries {
			items[i] = domain.LineItem{
				ID:           e.ID,
				Category:     e.Category,
				Label:        e.Label,
				BaseUSDCents: e.BaseUSDCents,
			}
		}
	}

	project := &domain.Project{
		ID:            uuid.New(),
		UserID:        userID,
		ContactEmail:  strings.TrimSpace(in.ContactEmail),
		ContactName:   strings.TrimSpace(in.ContactName),
		Phases:        in.Phases,
		CartItems:     items,
		TotalAmount:   total,
		Status:        "pending",
		PaymentStatus: domain.ProjectUnpaid,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	log.Printf("level=info component=app op=submit_project outcome=created project_id=%s user_id=%s total_cents=%d items=%d", project.ID, userID, total, len(items))

	event := domain.ProjectSubmittedEvent{
		ProjectID:    project.ID,
		UserID:       userID,
		ContactEmail: project.ContactEmail,
		ContactName:  project.ContactName,
		TotalAmount:  total,
		ItemCount:    len(items),
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, domain.EventsExchange, domain.ProjectSubmittedKey, event); err != nil {
		log.Printf("level=warn component=app op=submit_project msg=\"event publish failed\" project_id=%s err=%v", project.ID, err)
	}

	return project, nil
}

// GetProjectForUser returns a project if the caller owns it or is the
// administrator. Anyone else sees not-found rather than forbidden, so project
// ids cannot be probed.
func (s *Service) GetProjectForUser(ctx context.Context, userID string, projectID uuid.UUID) (*domain.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID && (s.adminUID == "" || userID != s.adminUID) {
		return nil, store.ErrProjectNotFound
	}
	return project, nil
}

// UpdateProjectStatus moves a project to a new status. Admin-only; the status
// must belong to the fixed set. A status email to the project contact is
// best-effort.
func (s *Service) UpdateProjectStatus(ctx context.Context, actorUserID string, projectID uuid.UUID, status, message string) error {
	if s.adminUID == "" || actorUserID != s.adminUID {
		return ErrNotAdmin
	}
	if !domain.IsValidProjectStatus(status) {
		return &ErrInvalidStatus{Status: status}
	}

	if err := s.repo.AppendProjectStatus(ctx, projectID, status, message, actorUserID); err != nil {
		return err
	}
	log.Printf("level=info component=app op=update_status project_id=%s status=%s", projectID, status)

	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		log.Printf("level=warn component=app op=update_status msg=\"status email skipped; project reload failed\" project_id=%s err=%v", projectID, err)
		return nil
	}
	s.sendBestEffort(ctx, s.templates.Status, map[string]string{
		"to_email":   project.ContactEmail,
		"to_name":    project.ContactName,
		"project_id": projectID.String(),
		"status":     status,
		"message":    message,
	}, project.UserID, projectID, "status_update", project.ContactEmail, message)

	return nil
}

// SendEmailInput is the callable email surface.
type SendEmailInput struct {
	Type           string    `json:"type"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	ProjectID      uuid.UUID `json:"project_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// SendTypedEmail dispatches one of the known email types and records it as a
// user message. Unlike the in-handler best-effort sends, this surface reports
// failures to its caller.
func (s *Service) SendTypedEmail(ctx context.Context, userID string, in SendEmailInput) error {
	if s.email == nil {
		return ErrEmailNotConfigured
	}
	if strings.TrimSpace(in.RecipientEmail) == "" {
		return ErrMissingEmail
	}

	templateID, err := s.templateFor(in.Type)
	if err != nil {
		return err
	}

	params := map[string]string{
		"to_email":   in.RecipientEmail,
		"to_name":    in.RecipientName,
		"project_id": in.ProjectID.String(),
		"status":     in.Status,
		"message":    in.Message,
	}
	if err := s.email.Send(ctx, templateID, params); err != nil {
		log.Printf("level=error component=app op=send_email type=%s err=%v", in.Type, err)
		return fmt.Errorf("email send failed: %w", err)
	}

	s.recordUserMessage(ctx, userID, in.ProjectID, in.Type, in.RecipientEmail, in.Message)
	return nil
}

// BootstrapUser creates the profile row for a new signup and sends a welcome
// email. Re-delivered signup events are absorbed by the upsert.
func (s *Service) BootstrapUser(ctx context.Context, event domain.UserCreatedEvent) error {
	if strings.TrimSpace(event.UserID) == "" {
		return errors.New("user created event missing user id")
	}
	if err := s.repo.UpsertUserProfile(ctx, domain.UserProfile{
		UserID: event.UserID,
		Email:  event.Email,
		Name:   event.Name,
	}); err != nil {
		return err
	}
	log.Printf("level=info component=app op=bootstrap_user user_id=%s", event.UserID)

	s.sendBestEffort(ctx, s.templates.Welcome, map[string]string{
		"to_email": event.Email,
		"to_name":  event.Name,
	}, event.UserID, uuid.Nil, "welcome", event.Email, "")
	return nil
}

func (s *Service) templateFor(emailType string) (string, error) {
	var id string
	switch emailType {
	case "welcome":
		id = s.templates.Welcome
	case "submission":
		id = s.templates.Submission
	case "admin_alert":
		id = s.templates.AdminAlert
	case "status_update":
		id = s.templates.Status
	case "receipt":
		id = s.templates.Receipt
	default:
		return "", ErrUnknownEmailType
	}
	if id == "" {
		return "", ErrEmailNotConfigured
	}
	return id, nil
}

// resolveItems maps the submitted ids to catalog entries, dropping duplicate
// ids, and returns the entries with their summed base price.
func (s *Service) resolveItems(itemIDs []string) ([]pricing.CatalogEntry, int64, error) {
	if len(itemIDs) == 0 {
		return nil, 0, ErrEmptyCart
	}
	seen := make(map[string]bool, len(itemIDs))
	var (
		entries []pricing.CatalogEntry
		total   int64
	)
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, err := s.catalog.Entry(id)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
		total += entry.BaseUSDCents
	}
	return entries, total, nil
}

// sendBestEffort dispatches an email and records it, logging failures instead
// of propagating them. Used wherever email must not fail the primary
// operation.
func (s *Service) sendBestEffort(ctx context.Context, templateID string, params map[string]string, userID string, projectID uuid.UUID, msgType, recipient, body string) {
	if s.email == nil || templateID == "" {
		log.Printf("level=warn component=app msg=\"email skipped; not configured\" type=%s", msgType)
		return
	}
	if err := s.email.Send(ctx, templateID, params); err != nil {
		log.Printf("level=warn component=app msg=\"best-effort email failed\" type=%s recipient=%s err=%v", msgType, recipient, err)
		return
	}
	s.recordUserMessage(ctx, userID, projectID, msgType, recipient, body)
}

func (s *Service) recordUserMessage(ctx context.Context, userID string, projectID uuid.UUID, msgType, recipient, body string) {
	err := s.repo.CreateUserMessage(ctx, &domain.UserMessage{
		ID:             uuid.New(),
		UserID:         userID,
		ProjectID:      projectID,
		Type:           msgType,
		RecipientEmail: recipient,
		Body:           body,
	})
	if err != nil {
		log.Printf("level=warn component=app msg=\"user message record failed\" type=%s err=%v", msgType, err)
	}
}
