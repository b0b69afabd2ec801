package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
)

type PgNotificationRepository struct {
	db *sqlx.DB
}

func NewPgNotificationRepository(db *sqlx.DB) *PgNotificationRepository {
	return &PgNotificationRepository{db: db}
}

const notificationColumns = `id, user_id, title, message, type, reference_id, is_read, created_at`

func (r *PgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, reference_id, is_read, created_at)
		VALUES (:id, :user_id, :title, :message, :type, :reference_id, :is_read, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, n)
	if isForeignKeyViolation(err) {
		return domain.ErrRecipientNotFound
	}
	return err
}

// isForeignKeyViolation reports whether err is SQLSTATE 23503, which for
// notifications means user_id has no users row.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// CreateForAllUsers fans template out to every row of users in one statement.
func (r *PgNotificationRepository) CreateForAllUsers(ctx context.Context, template domain.Notification) ([]domain.Notification, error) {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, reference_id, is_read, created_at)
		SELECT gen_random_uuid(), u.id, $1, $2, $3, $4, FALSE, $5
		FROM users u
		RETURNING ` + notificationColumns

	var created []domain.Notification
	err := r.db.SelectContext(ctx, &created, query,
		template.Title, template.Message, template.Type, template.ReferenceID, template.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("broadcast insert: %w", err)
	}
	return created, nil
}

func (r *PgNotificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	var notifications []domain.Notification
	err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAsRead is idempotent for the owner; it reports ErrNotificationNotFound
// when no row with that id belongs to userID.
func (r *PgNotificationRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *PgNotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *PgNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}

func (r *PgNotificationRepository) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *PgNotificationRepository) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	return err
}

func (r *PgNotificationRepository) DeleteByID(ctx context.Context, notificationID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, notificationID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
