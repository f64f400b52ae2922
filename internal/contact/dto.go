// Egen Lista | 2026
// dto.go

package contact

import (
	"time"
)

type CreateContactRequest struct {
	FirstName  string `json:"first_name"  validate:"required,min=1,max=100"`
	LastName   string `json:"last_name"   validate:"max=100"`
	Email      string `json:"email"       validate:"required,email,max=255"`
	Phone      string `json:"phone"       validate:"max=30"`
	Type       string `json:"type"        validate:"omitempty,oneof=CONTACT LEAD CUSTOMER AMBASSADOR"`
	Street     string `json:"street"      validate:"max=200"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	City       string `json:"city"        validate:"max=100"`
}

// UpdateContactRequest uses pointers so a free-tier check can tell
// "field omitted" apart from "field set to empty".
type UpdateContactRequest struct {
	FirstName  *string `json:"first_name,omitempty"  validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name,omitempty"   validate:"omitempty,max=100"`
	Email      *string `json:"email,omitempty"       validate:"omitempty,email,max=255"`
	Phone      *string `json:"phone,omitempty"       validate:"omitempty,max=30"`
	Type       *string `json:"type,omitempty"        validate:"omitempty,oneof=CONTACT LEAD CUSTOMER AMBASSADOR"`
	Street     *string `json:"street,omitempty"      validate:"omitempty,max=200"`
	PostalCode *string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	City       *string `json:"city,omitempty"        validate:"omitempty,max=100"`
}

// TouchesMoreThanType reports whether any field other than the
// classification is being changed.
func (r *UpdateContactRequest) TouchesMoreThanType() bool {
	return r.FirstName != nil || r.LastName != nil || r.Email != nil ||
		r.Phone != nil || r.Street != nil || r.PostalCode != nil ||
		r.City != nil
}

type UpdateNoteRequest struct {
	Note string `json:"note"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type ConsentInput struct {
	Storage   bool `json:"storage"`
	Marketing bool `json:"marketing"`
	Partners  bool `json:"partners"`
}

// PublicRegisterRequest is the QR signup form payload. UserID
// identifies the list owner and rides in the form URL.
type PublicRegisterRequest struct {
	UserID    string       `json:"user_id"    validate:"required,uuid"`
	FirstName string       `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string       `json:"last_name"  validate:"max=100"`
	Email     string       `json:"email"      validate:"required,email,max=255"`
	Phone     string       `json:"phone"      validate:"max=30"`
	Consents  ConsentInput `json:"consents"`
}

type ContactResponse struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Type            string     `json:"type"`
	Street          string     `json:"street"`
	PostalCode      string     `json:"postal_code"`
	City            string     `json:"city"`
	Note            string     `json:"note"`
	NoteUpdatedAt   *time.Time `json:"note_updated_at,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified"`
	IsNew           bool       `json:"is_new"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ConsentResponse struct {
	Type      string    `json:"type"`
	Granted   bool      `json:"granted"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toContactResponse(c *Contact, isNew bool) ContactResponse {
	return ContactResponse{
		ID:              c.ID,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Email:           c.Email,
		Phone:           c.Phone,
		Type:            c.Type,
		Street:          c.Street,
		PostalCode:      c.PostalCode,
		City:            c.City,
		Note:            c.Note,
		NoteUpdatedAt:   c.NoteUpdatedAt,
		IsEmailVerified: c.IsEmailVerified,
		IsNew:           isNew,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
