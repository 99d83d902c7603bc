/**
 * @description
 * Event payloads published to and consumed from the message broker. Routing
 * keys live next to the payloads they carry so producers and consumers cannot
 * drift apart.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Exchange and routing keys for the service's event traffic.
const (
	EventsExchange = "onboarding.events"

	ProjectSubmittedKey = "project.submitted"
	PaymentCompletedKey = "payment.completed"
	UserCreatedKey      = "user.created"
)

// ProjectSubmittedEvent is published after a project document has been
// persisted with its server-computed total.
type ProjectSubmittedEvent struct {
	ProjectID    uuid.UUID `json:"project_id"`
	UserID       string    `json:"user_id"`
	ContactEmail string    `json:"contact_email"`
	ContactName  string    `json:"contact_name"`
	TotalAmount  int64     `json:"total_amount"` // USD cents
	ItemCount    int       `json:"item_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// PaymentCompletedEvent is published once a payment record transitions to
// completed. Consumers must tolerate redelivery; the transition itself is
// idempotent at the store layer.
type PaymentCompletedEvent struct {
	ProjectID         uuid.UUID `json:"project_id"`
	UserID            string    `json:"user_id"`
	Provider          string    `json:"provider"`
	ExternalReference string    `json:"external_reference"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	CompletedAt       time.Time `json:"completed_at"`
}

// UserCreatedEvent arrives from the identity layer when a new account signs up.
type UserCreatedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}
