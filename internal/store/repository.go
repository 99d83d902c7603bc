/**
 * @description
 * This file defines the data access contract for the onboarding-service. The
 * application layer depends on this interface, which lets tests substitute
 * an in-memory stub for the PostgreSQL implementation.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/domain"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrPaymentNotFound = errors.New("payment record not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Repository defines all persistence operations used by the service.
type Repository interface {
	// Users
	UpsertUserProfile(ctx context.Context, profile domain.UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// Projects
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	AppendProjectStatus(ctx context.Context, projectID uuid.UUID, status, message, changedBy string) error

	// Payments
	CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord) error
	GetPaymentByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error)
	// MarkPaymentCompleted flips the record to completed and the owning
	// project to paid in one transaction. The bool result is false when the
	// record was already completed (idempotent re-delivery).
	MarkPaymentCompleted(ctx context.Context, reference string) (*domain.PaymentRecord, bool, error)
	ListStalePendingPayments(ctx context.Context, provider string, olderThan time.Time, limit int) ([]domain.PaymentRecord, error)

	// Notifications
	CreateAdminNotification(ctx context.Context, n *domain.AdminNotification) error
	CreateUserMessage(ctx context.Context, m *domain.UserMessage) error
}
