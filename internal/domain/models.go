/**
 * @description
 * This file defines the core domain models for the onboarding-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` in the smallest currency unit (USD cents,
 *   NGN kobo), which avoids floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment provider identifiers.
const (
	ProviderStripe   = "stripe"
	ProviderPaystack = "paystack"
)

// Payment record statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// Project payment statuses.
const (
	ProjectUnpaid = "unpaid"
	ProjectPaid   = "paid"
)

// ProjectStatuses is the fixed set of values a project may transition through.
// Status updates reject anything outside this set.
var ProjectStatuses = []string{
	"pending",
	"in_progress",
	"ready_for_review",
	"revisions_needed",
	"completed",
	"cancelled",
}

// IsValidProjectStatus reports whether status is one of ProjectStatuses.
func IsValidProjectStatus(status string) bool {
	for _, s := range ProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// LineItem is one selected assisted-service add-on. Identity is ID; the
// monetary fields are denormalized localization output, never the source of
// truth for charging (that is the pricing catalog).
type LineItem struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Label         string `json:"label"`
	BaseUSDCents  int64  `json:"base_usd_cents"`
	LocalAmount   int64  `json:"local_amount,omitempty"` // minor units of LocalCurrency
	LocalCurrency string `json:"local_currency,omitempty"`
}

// Project is the server-authoritative record of one commissioned work request,
// built up across the onboarding phases. Maps to the `projects` table.
type Project struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"` // identity-provider subject
	ContactEmail  string         `json:"contact_email"`
	ContactName   string         `json:"contact_name"`
	Phases        map[string]any `json:"phases"` // vision, users, functionality, backend, identity, deployment
	CartItems     []LineItem     `json:"cart_items"`
	TotalAmount   int64          `json:"total_amount"` // USD cents, always recomputed server-side
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ProjectStatusChange is one entry in a project's status history.
type ProjectStatusChange struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	ChangedBy string    `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentRecord tracks one provider checkout from initiation to completion.
// Status only ever moves pending -> completed, and only via a verified
// webhook or an explicit provider re-query.
type PaymentRecord struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"user_id"`
	ProjectID         uuid.UUID `json:"project_id"`
	Provider          string    `json:"provider"`
	ExternalReference string    `json:"external_reference"`
	Amount            int64     `json:"amount"` // provider minor units
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UserProfile is the bootstrap record created when the identity provider
// reports a new signup. Maps to the `users` table.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminNotification is a persisted alert for the operations team.
type AdminNotification struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	ProjectID uuid.UUID `json:"project_id"`
	Summary   string    `json:"summary"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMessage records an email dispatched (or attempted) to a user.
type UserMessage struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Type           string    `json:"type"`
	RecipientEmail string    `json:"recipient_email"`
	Body           string    `json:"body,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
