// Egen Lista | 2026
// entity.go

package contact

import (
	"time"
)

const (
	TypeContact    = "CONTACT"
	TypeLead       = "LEAD"
	TypeCustomer   = "CUSTOMER"
	TypeAmbassador = "AMBASSADOR"
)

func ValidType(t string) bool {
	switch t {
	case TypeContact, TypeLead, TypeCustomer, TypeAmbassador:
		return true
	}
	return false
}

const (
	ConsentStorage   = "STORAGE"
	ConsentMarketing = "MARKETING"
	ConsentPartners  = "PARTNERS"
)

// NewContactWindow bounds the "new" badge: a contact older than this
// is never flagged, viewed or not.
const NewContactWindow = 14 * 24 * time.Hour

// VerificationTokenTTL applies to the contact's own email
// confirmation from the public signup form. The token is stored in
// plaintext and looked up by equality.
const VerificationTokenTTL = 24 * time.Hour

type Contact struct {
	ID                         string     `db:"id"`
	UserID                     string     `db:"user_id"`
	FirstName                  string     `db:"first_name"`
	LastName                   string     `db:"last_name"`
	Email                      string     `db:"email"`
	Phone                      string     `db:"phone"`
	Type                       string     `db:"type"`
	Street                     string     `db:"street"`
	PostalCode                 string     `db:"postal_code"`
	City                       string     `db:"city"`
	Note                       string     `db:"note"`
	NoteUpdatedAt              *time.Time `db:"note_updated_at"`
	IsEmailVerified            bool       `db:"is_email_verified"`
	EmailVerificationToken     *string    `db:"email_verification_token"`
	EmailVerificationExpiresAt *time.Time `db:"email_verification_expires_at"`
	CreatedAt                  time.Time  `db:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at"`
}

type Interaction struct {
	ContactID    string    `db:"contact_id"`
	UserID       string    `db:"user_id"`
	LastViewedAt time.Time `db:"last_viewed_at"`
}

type Consent struct {
	ID        string    `db:"id"`
	ContactID string    `db:"contact_id"`
	Type      string    `db:"type"`
	Granted   bool      `db:"granted"`
	CreatedAt time.Time `db:"created_at"`
}

// IsNew reports whether the contact should carry the "new" badge for
// a viewer: never opened by them and created inside the window.
func IsNew(c *Contact, viewed bool, now time.Time) bool {
	if viewed {
		return false
	}
	return now.Sub(c.CreatedAt) <= NewContactWindow
}
