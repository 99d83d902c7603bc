/**
 * @description
 * Event consumers for the onboarding-service. Notification work rides on the
 * message broker so the request path never waits on (or fails because of)
 * email delivery. Handlers return true to ack; since a nack means redelivery
 * and redelivery means a duplicate email, handlers ack even when a send
 * fails. Duplicate or dropped notifications are an accepted trade-off,
 * while the authoritative records were already written upstream.
 */

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/domain"
)

// EventConsumer dispatches broker events to the service.
type EventConsumer struct {
	service *Service
}

// Consumer returns the event consumer bound to this service.
func (s *Service) Consumer() *EventConsumer {
	return &EventConsumer{service: s}
}

// HandleProjectSubmitted sends the client confirmation and admin alert for a
// freshly submitted project and records an admin notification.
func (c *EventConsumer) HandleProjectSubmitted(body []byte) bool {
	var event domain.ProjectSubmittedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=consumer event=project_submitted msg=\"unparsable payload; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := c.service
	totalFormatted := fmt.Sprintf("$%.2f", float64(event.TotalAmount)/100)

	s.sendBestEffort(ctx, s.templates.Submission, map[string]string{
		"to_email":   event.ContactEmail,
		"to_name":    event.ContactName,
		"project_id": event.ProjectID.String(),
		"total":      totalFormatted,
	}, event.UserID, event.ProjectID, "submission", event.ContactEmail, "")

	if s.adminEmail != "" {
		s.sendBestEffort(ctx, s.templates.AdminAlert, map[string]string{
			"to_email":   s.adminEmail,
			"project_id": event.ProjectID.String(),
			"client":     event.ContactName,
			"total":      totalFormatted,
		}, event.UserID, event.ProjectID, "admin_alert", s.adminEmail, "")
	}

	err := s.repo.CreateAdminNotification(ctx, &domain.AdminNotification{
		ID:        uuid.New(),
		Type:      "project_submitted",
		ProjectID: event.ProjectID,
		Summary:   fmt.Sprintf("New project from %s (%d items, %s)", event.ContactName, event.ItemCount, totalFormatted),
	})
	if err != nil {
		log.Printf("level=warn component=consumer event=project_submitted msg=\"admin notification write failed\" project_id=%s err=%v", event.ProjectID, err)
	}

	return true
}

// HandlePaymentCompleted sends a receipt for a completed payment.
func (c *EventConsumer) HandlePaymentCompleted(body []byte) bool {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=consumer event=payment_completed msg=\"unparsable payload; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := c.service
	project, err := s.repo.GetProject(ctx, event.ProjectID)
	if err != nil {
		log.Printf("level=warn component=consumer event=payment_completed msg=\"receipt skipped; project load failed\" project_id=%s err=%v", event.ProjectID, err)
		return true
	}

	s.sendBestEffort(ctx, s.templates.Receipt, map[string]string{
		"to_email":  project.ContactEmail,
		"to_name":   project.ContactName,
		"provider":  event.Provider,
		"reference": event.ExternalReference,
		"amount":    fmt.Sprintf("%.2f %s", float64(event.Amount)/100, event.Currency),
	}, event.UserID, event.ProjectID, "receipt", project.ContactEmail, "")

	return true
}

// HandleUserCreated bootstraps a new user profile. The underlying upsert is
// idempotent, so this handler nacks on persistence failure to get a retry.
func (c *EventConsumer) HandleUserCreated(body []byte) bool {
	var event domain.UserCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=consumer event=user_created msg=\"unparsable payload; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.service.BootstrapUser(ctx, event); err != nil {
		log.Printf("level=error component=consumer event=user_created msg=\"bootstrap failed; re-queuing\" user_id=%s err=%v", event.UserID, err)
		return false
	}
	return true
}
