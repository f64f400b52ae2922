// Egen Lista | 2026
// repository.go

package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/egenlista/api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, db core.DBTX, c *Contact) error
	GetForUser(ctx context.Context, id, userID string) (*Contact, error)
	ListByUser(ctx context.Context, userID string) ([]Contact, error)
	Update(ctx context.Context, c *Contact) error
	UpdateNote(ctx context.Context, id, userID, note string) (*Contact, error)
	Delete(ctx context.Context, id, userID string) error
	BulkDelete(ctx context.Context, ids []string, userID string) (int64, error)

	FindByVerificationToken(ctx context.Context, token string) (*Contact, error)
	MarkEmailVerified(ctx context.Context, id string) error

	UpsertInteraction(ctx context.Context, contactID, userID string) error
	ViewedContactIDs(
		ctx context.Context,
		userID string,
	) (map[string]time.Time, error)
	HasInteraction(ctx context.Context, contactID, userID string) (bool, error)

	CreateConsents(
		ctx context.Context,
		db core.DBTX,
		consents []Consent,
	) error
	ListConsents(ctx context.Context, contactID string) ([]Consent, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const contactColumns = `
	id, user_id, first_name, last_name, email, phone, type,
	street, postal_code, city, note, note_updated_at,
	is_email_verified, email_verification_token,
	email_verification_expires_at, created_at, updated_at`

// Create takes an explicit executor so the public signup can insert
// the contact and its consents in one transaction.
func (r *repository) Create(
	ctx context.Context,
	db core.DBTX,
	c *Contact,
) error {
	query := `
		INSERT INTO contacts (
			id, user_id, first_name, last_name, email, phone, type,
			street, postal_code, city, note,
			email_verification_token, email_verification_expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at`

	row := db.QueryRowxContext(ctx, query,
		c.ID,
		c.UserID,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Type,
		c.Street,
		c.PostalCode,
		c.City,
		c.Note,
		c.EmailVerificationToken,
		c.EmailVerificationExpiresAt,
	)

	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create contact: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create contact: %w", err)
	}

	return nil
}

// GetForUser scopes by owner. A contact belonging to someone else
// reads as not found.
func (r *repository) GetForUser(
	ctx context.Context,
	id, userID string,
) (*Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1 AND user_id = $2`

	var c Contact
	err := r.db.GetContext(ctx, &c, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get contact: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}

	return &c, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		ORDER BY created_at DESC`

	var contacts []Contact
	if err := r.db.SelectContext(ctx, &contacts, query, userID); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return contacts, nil
}

func (r *repository) Update(ctx context.Context, c *Contact) error {
	query := `
		UPDATE contacts
		SET first_name = $3, last_name = $4, email = $5, phone = $6,
			type = $7, street = $8, postal_code = $9, city = $10,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &c.UpdatedAt, query,
		c.ID,
		c.UserID,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Type,
		c.Street,
		c.PostalCode,
		c.City,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update contact: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("update contact: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update contact: %w", err)
	}

	return nil
}

func (r *repository) UpdateNote(
	ctx context.Context,
	id, userID, note string,
) (*Contact, error) {
	query := `
		UPDATE contacts
		SET note = $3, note_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + contactColumns

	var c Contact
	err := r.db.GetContext(ctx, &c, query, id, userID, note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update note: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	return &c, nil
}

func (r *repository) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM contacts WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete contact: %w", core.ErrNotFound)
	}

	return nil
}

// BulkDelete removes the owner's contacts among ids; ids belonging to
// other users are silently skipped by the owner scope.
func (r *repository) BulkDelete(
	ctx context.Context,
	ids []string,
	userID string,
) (int64, error) {
	query, args, err := sqlx.In(
		`DELETE FROM contacts WHERE user_id = ? AND id IN (?)`,
		userID,
		ids,
	)
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}

	query = sqlx.Rebind(sqlx.DOLLAR, query)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}

	return rows, nil
}

func (r *repository) FindByVerificationToken(
	ctx context.Context,
	token string,
) (*Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE email_verification_token = $1`

	var c Contact
	err := r.db.GetContext(ctx, &c, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find by token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find by token: %w", err)
	}

	return &c, nil
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE contacts
		SET is_email_verified = TRUE,
			email_verification_token = NULL,
			email_verification_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark contact verified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark contact verified: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("mark contact verified: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpsertInteraction(
	ctx context.Context,
	contactID, userID string,
) error {
	query := `
		INSERT INTO contact_interactions (contact_id, user_id, last_viewed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contact_id, user_id)
		DO UPDATE SET last_viewed_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, contactID, userID); err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}

	return nil
}

func (r *repository) ViewedContactIDs(
	ctx context.Context,
	userID string,
) (map[string]time.Time, error) {
	query := `
		SELECT contact_id, last_viewed_at
		FROM contact_interactions
		WHERE user_id = $1`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	viewed := make(map[string]time.Time)
	for rows.Next() {
		var contactID string
		var lastViewedAt time.Time
		if err := rows.Scan(&contactID, &lastViewedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		viewed[contactID] = lastViewedAt
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}

	return viewed, nil
}

func (r *repository) HasInteraction(
	ctx context.Context,
	contactID, userID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM contact_interactions
			WHERE contact_id = $1 AND user_id = $2
		)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, contactID, userID)
	if err != nil {
		return false, fmt.Errorf("check interaction: %w", err)
	}

	return exists, nil
}

func (r *repository) CreateConsents(
	ctx context.Context,
	db core.DBTX,
	consents []Consent,
) error {
	query := `
		INSERT INTO consents (id, contact_id, type, granted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contact_id, type)
		DO UPDATE SET granted = EXCLUDED.granted`

	for i := range consents {
		c := &consents[i]
		if _, err := db.ExecContext(ctx, query,
			c.ID,
			c.ContactID,
			c.Type,
			c.Granted,
		); err != nil {
			return fmt.Errorf("create consent: %w", err)
		}
	}

	return nil
}

func (r *repository) ListConsents(
	ctx context.Context,
	contactID string,
) ([]Consent, error) {
	query := `
		SELECT id, contact_id, type, granted, created_at
		FROM consents
		WHERE contact_id = $1
		ORDER BY type`

	var consents []Consent
	err := r.db.SelectContext(ctx, &consents, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}

	return consents, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
