// Egen Lista | 2026
// service.go

package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/skip2/go-qrcode"

	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/mail"
)

var (
	ErrUpgradeRequired = errors.New("upgrade required")
	ErrNoteTooLong     = errors.New("note exceeds plan limit")
	ErrConsentRequired = errors.New("storage consent required")
)

// PlanGate answers the two subscription questions the contact module
// cares about.
type PlanGate interface {
	IsPro(ctx context.Context, userID string) (bool, error)
	NoteLimitForUser(ctx context.Context, userID string) (int, error)
}

type Service struct {
	db      *sqlx.DB
	repo    Repository
	plans   PlanGate
	mailer  mail.Mailer
	baseURL string
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	plans PlanGate,
	mailer mail.Mailer,
	baseURL string,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		plans:   plans,
		mailer:  mailer,
		baseURL: baseURL,
	}
}

type ListResult struct {
	Items     []ContactResponse
	Total     int
	Page      int
	PageSize  int
	PageCount int
}

// List loads the owner's full collection and runs the filter, sort,
// and paginate pipeline over it, flagging unviewed recent contacts.
func (s *Service) List(
	ctx context.Context,
	userID string,
	q Query,
) (*ListResult, error) {
	q.Normalize(nil)

	contacts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	viewed, err := s.repo.ViewedContactIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := Apply(contacts, q)

	now := time.Now()
	items := make([]ContactResponse, 0, len(result.Items))
	for i := range result.Items {
		c := &result.Items[i]
		_, wasViewed := viewed[c.ID]
		items = append(items, toContactResponse(c, IsNew(c, wasViewed, now)))
	}

	return &ListResult{
		Items:     items,
		Total:     result.Total,
		Page:      result.Page,
		PageSize:  q.PageSize,
		PageCount: result.PageCount,
	}, nil
}

// Export returns the filtered and sorted collection in full, ignoring
// pagination, for the CSV download.
func (s *Service) Export(
	ctx context.Context,
	userID string,
	q Query,
) ([]Contact, error) {
	q.Normalize(nil)

	contacts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := Filter(contacts, q.Search, q.Type)
	Sort(filtered, q.SortBy, q.SortDir)

	return filtered, nil
}

// Create is the manual dashboard path, gated to PRO.
func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateContactRequest,
) (*ContactResponse, error) {
	pro, err := s.plans.IsPro(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check plan: %w", err)
	}
	if !pro {
		return nil, ErrUpgradeRequired
	}

	contactType := req.Type
	if contactType == "" {
		contactType = TypeContact
	}

	c := &Contact{
		ID:         uuid.New().String(),
		UserID:     userID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      strings.ToLower(req.Email),
		Phone:      req.Phone,
		Type:       contactType,
		Street:     req.Street,
		PostalCode: req.PostalCode,
		City:       req.City,
	}

	if err := s.repo.Create(ctx, s.db, c); err != nil {
		return nil, err
	}

	resp := toContactResponse(c, false)
	return &resp, nil
}

// Get returns the contact and records the view. The "new" flag
// reflects the state before this view, so the badge survives exactly
// one open.
func (s *Service) Get(
	ctx context.Context,
	userID, id string,
) (*ContactResponse, []ConsentResponse, error) {
	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}

	wasViewed, err := s.repo.HasInteraction(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}

	s.recordInteraction(ctx, id, userID)

	consents, err := s.repo.ListConsents(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	consentResponses := make([]ConsentResponse, 0, len(consents))
	for _, consent := range consents {
		consentResponses = append(consentResponses, ConsentResponse{
			Type:      consent.Type,
			Granted:   consent.Granted,
			CreatedAt: consent.CreatedAt,
		})
	}

	resp := toContactResponse(c, IsNew(c, wasViewed, time.Now()))
	return &resp, consentResponses, nil
}

// Update applies the requested fields. Free accounts may only change
// the classification; anything else needs PRO.
func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateContactRequest,
) (*ContactResponse, error) {
	pro, err := s.plans.IsPro(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check plan: %w", err)
	}

	if !pro && req.TouchesMoreThanType() {
		return nil, ErrUpgradeRequired
	}

	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		c.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		c.LastName = *req.LastName
	}
	if req.Email != nil {
		c.Email = strings.ToLower(*req.Email)
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Type != nil {
		c.Type = *req.Type
	}
	if req.Street != nil {
		c.Street = *req.Street
	}
	if req.PostalCode != nil {
		c.PostalCode = *req.PostalCode
	}
	if req.City != nil {
		c.City = *req.City
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.recordInteraction(ctx, id, userID)

	resp := toContactResponse(c, false)
	return &resp, nil
}

// UpdateNote replaces the markdown note, enforcing the plan's
// character cap.
func (s *Service) UpdateNote(
	ctx context.Context,
	userID, id, note string,
) (*ContactResponse, error) {
	limit, err := s.plans.NoteLimitForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check plan: %w", err)
	}

	if len([]rune(note)) > limit {
		return nil, fmt.Errorf("%w (%d characters)", ErrNoteTooLong, limit)
	}

	c, err := s.repo.UpdateNote(ctx, id, userID, note)
	if err != nil {
		return nil, err
	}

	s.recordInteraction(ctx, id, userID)

	resp := toContactResponse(c, false)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *Service) BulkDelete(
	ctx context.Context,
	userID string,
	ids []string,
) (int, error) {
	deleted, err := s.repo.BulkDelete(ctx, ids, userID)
	if err != nil {
		return 0, err
	}

	return int(deleted), nil
}

// SignupURL is the public form address a new contact lands on; the
// owner's id rides in the path.
func (s *Service) SignupURL(userID string) string {
	return fmt.Sprintf("%s/anmal/%s", s.baseURL, userID)
}

// SignupQR renders the signup URL as a PNG QR code.
func (s *Service) SignupQR(userID string) ([]byte, error) {
	png, err := qrcode.Encode(s.SignupURL(userID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	return png, nil
}

// PublicRegister handles the QR signup form: the contact row and its
// consents are written in one transaction, then a verification mail
// goes out best-effort.
func (s *Service) PublicRegister(
	ctx context.Context,
	req PublicRegisterRequest,
) error {
	if !req.Consents.Storage {
		return ErrConsentRequired
	}

	token, err := core.GenerateVerificationToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	expiresAt := time.Now().Add(VerificationTokenTTL)

	c := &Contact{
		ID:                         uuid.New().String(),
		UserID:                     req.UserID,
		FirstName:                  req.FirstName,
		LastName:                   req.LastName,
		Email:                      strings.ToLower(req.Email),
		Phone:                      req.Phone,
		Type:                       TypeContact,
		EmailVerificationToken:     &token,
		EmailVerificationExpiresAt: &expiresAt,
	}

	consents := []Consent{
		{
			ID:        uuid.New().String(),
			ContactID: c.ID,
			Type:      ConsentStorage,
			Granted:   true,
		},
		{
			ID:        uuid.New().String(),
			ContactID: c.ID,
			Type:      ConsentMarketing,
			Granted:   req.Consents.Marketing,
		},
		{
			ID:        uuid.New().String(),
			ContactID: c.ID,
			Type:      ConsentPartners,
			Granted:   req.Consents.Partners,
		},
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if txErr := s.repo.Create(ctx, tx, c); txErr != nil {
			return txErr
		}
		return s.repo.CreateConsents(ctx, tx, consents)
	})
	if err != nil {
		return err
	}

	mail.LogOnError(
		s.mailer.SendContactVerification(ctx, c.Email, token),
		"contact_verification",
		c.Email,
	)

	return nil
}

// VerifyEmail redeems a public-signup token. Expired and unknown
// tokens fail the same way.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	c, err := s.repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("verify contact: %w", core.ErrTokenInvalid)
		}
		return fmt.Errorf("find contact: %w", err)
	}

	if c.EmailVerificationExpiresAt == nil ||
		time.Now().After(*c.EmailVerificationExpiresAt) {
		return fmt.Errorf("verify contact: %w", core.ErrTokenInvalid)
	}

	if err := s.repo.MarkEmailVerified(ctx, c.ID); err != nil {
		return fmt.Errorf("verify contact: %w", err)
	}

	return nil
}

func (s *Service) recordInteraction(ctx context.Context, contactID, userID string) {
	if err := s.repo.UpsertInteraction(ctx, contactID, userID); err != nil {
		slog.Warn("record interaction failed",
			"contact_id", contactID,
			"error", err,
		)
	}
}
