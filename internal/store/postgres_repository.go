/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for users, projects, payments, and
 * notification records.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - Project phase data and the cart snapshot are stored as JSONB: the phase
 *   payloads are free-form wizard answers and the snapshot is immutable, so
 *   neither earns its own relational shape.
 * - MarkPaymentCompleted is the one place two documents must change together
 *   (payment status and project payment status); it runs in a transaction
 *   with a conditional update so webhook retries are harmless.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devlaunch/onboarding-service/internal/domain"
)

// PostgresRepository is the concrete Repository backed by pgxpool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertUserProfile creates the profile row for a new signup. Re-delivered
// signup events hit the conflict arm and leave the existing row alone apart
// from refreshed contact fields.
func (r *PostgresRepository) UpsertUserProfile(ctx context.Context, profile domain.UserProfile) error {
	query := `
		INSERT INTO users (user_id, email, name, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
	`
	_, err := r.db.Exec(ctx, query, profile.UserID, profile.Email, profile.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

// GetUserProfile retrieves a user profile by the identity-provider subject.
func (r *PostgresRepository) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	query := `SELECT user_id, email, COALESCE(name, ''), created_at FROM users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Email, &p.Name, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateProject persists a newly submitted project along with its initial
// status history entry.
func (r *PostgresRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	phases, err := json.Marshal(project.Phases)
	if err != nil {
		return fmt.Errorf("failed to marshal project phases: %w", err)
	}
	items, err := json.Marshal(project.CartItems)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO projects (id, user_id, contact_email, contact_name, phases, cart_items, total_amount, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		project.ID, project.UserID, project.ContactEmail, project.ContactName,
		phases, items, project.TotalAmount, project.Status, project.PaymentStatus,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	historyQuery := `
		INSERT INTO project_status_history (id, project_id, status, message, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.Exec(ctx, historyQuery, uuid.New(), project.ID, project.Status, "Project submitted", project.UserID); err != nil {
		return fmt.Errorf("failed to insert initial status history: %w", err)
	}

	return tx.Commit(ctx)
}

// GetProject retrieves a project by id.
func (r *PostgresRepository) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var (
		p          domain.Project
		phasesJSON []byte
		itemsJSON  []byte
	)
	query := `
		SELECT id, user_id, contact_email, COALESCE(contact_name, ''), phases, cart_items, total_amount, status, payment_status, created_at, updated_at
		FROM projects WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.ContactEmail, &p.ContactName,
		&phasesJSON, &itemsJSON, &p.TotalAmount, &p.Status, &p.PaymentStatus,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if len(phasesJSON) > 0 {
		if err := json.Unmarshal(phasesJSON, &p.Phases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project phases: %w", err)
		}
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &p.CartItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
		}
	}
	return &p, nil
}

// AppendProjectStatus moves a project to a new status and records the
// transition in its history, in one transaction.
func (r *PostgresRepository) AppendProjectStatus(ctx context.Context, projectID uuid.UUID, status, message, changedBy string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`, status, projectID)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	query := `
		INSERT INTO project_status_history (id, project_id, status, message, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.Exec(ctx, query, uuid.New(), projectID, status, message, changedBy); err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}

	return tx.Commit(ctx)
}

// CreatePaymentRecord persists a pending payment after the provider session
// has been created successfully.
func (r *PostgresRepository) CreatePaymentRecord(ctx context.Context, record *domain.PaymentRecord) error {
	query := `
		INSERT INTO payments (id, user_id, project_id, provider, external_reference, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		record.ID, record.UserID, record.ProjectID, record.Provider,
		record.ExternalReference, record.Amount, record.Currency, record.Status,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment record: %w", err)
	}
	return nil
}

// GetPaymentByReference retrieves a payment record by its provider reference.
func (r *PostgresRepository) GetPaymentByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	var rec domain.PaymentRecord
	query := `
		SELECT id, user_id, project_id, provider, external_reference, amount, currency, status, created_at, updated_at
		FROM payments WHERE external_reference = $1
	`
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&rec.ID, &rec.UserID, &rec.ProjectID, &rec.Provider,
		&rec.ExternalReference, &rec.Amount, &rec.Currency, &rec.Status,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkPaymentCompleted transitions a payment to completed and the owning
// project to paid. Both writes commit together or not at all. A record that
// is already completed is returned with updated=false and nothing changes.
func (r *PostgresRepository) MarkPaymentCompleted(ctx context.Context, reference string) (*domain.PaymentRecord, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var rec domain.PaymentRecord
	query := `
		SELECT id, user_id, project_id, provider, external_reference, amount, currency, status, created_at, updated_at
		FROM payments WHERE external_reference = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, query, reference).Scan(
		&rec.ID, &rec.UserID, &rec.ProjectID, &rec.Provider,
		&rec.ExternalReference, &rec.Amount, &rec.Currency, &rec.Status,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, ErrPaymentNotFound
		}
		return nil, false, err
	}

	if rec.Status == domain.PaymentCompleted {
		return &rec, false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`, domain.PaymentCompleted, rec.ID); err != nil {
		return nil, false, fmt.Errorf("failed to complete payment: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE projects SET payment_status = $1, updated_at = NOW() WHERE id = $2`, domain.ProjectPaid, rec.ProjectID); err != nil {
		return nil, false, fmt.Errorf("failed to mark project paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	rec.Status = domain.PaymentCompleted
	return &rec, true, nil
}

// ListStalePendingPayments returns pending payments for a provider created
// before olderThan, oldest first. Used by the reconciliation job.
func (r *PostgresRepository) ListStalePendingPayments(ctx context.Context, provider string, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	query := `
		SELECT id, user_id, project_id, provider, external_reference, amount, currency, status, created_at, updated_at
		FROM payments
		WHERE provider = $1 AND status = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4
	`
	rows, err := r.db.Query(ctx, query, provider, domain.PaymentPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentRecord
	for rows.Next() {
		var rec domain.PaymentRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.ProjectID, &rec.Provider,
			&rec.ExternalReference, &rec.Amount, &rec.Currency, &rec.Status,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateAdminNotification persists an alert for the operations team.
func (r *PostgresRepository) CreateAdminNotification(ctx context.Context, n *domain.AdminNotification) error {
	query := `
		INSERT INTO admin_notifications (id, type, project_id, summary, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
	`
	if _, err := r.db.Exec(ctx, query, n.ID, n.Type, n.ProjectID, n.Summary); err != nil {
		return fmt.Errorf("failed to insert admin notification: %w", err)
	}
	return nil
}

// CreateUserMessage records an email dispatched to a user.
func (r *PostgresRepository) CreateUserMessage(ctx context.Context, m *domain.UserMessage) error {
	query := `
		INSERT INTO user_messages (id, user_id, project_id, type, recipient_email, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	if _, err := r.db.Exec(ctx, query, m.ID, m.UserID, m.ProjectID, m.Type, m.RecipientEmail, m.Body); err != nil {
		return fmt.Errorf("failed to insert user message: %w", err)
	}
	return nil
}
