// Egen Lista | 2026
// oauth.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/egenlista/api/internal/config"
	"github.com/egenlista/api/internal/core"
)

const googleIssuer = "https://accounts.google.com"

// GoogleAuthenticator exchanges an authorization code for a verified
// Google identity. Accounts created this way have no password and
// count as email-verified from the start.
type GoogleAuthenticator struct {
	provider *oidc.Provider
	oauth    oauth2.Config
}

func NewGoogleAuthenticator(
	ctx context.Context,
	cfg config.GoogleOAuthConfig,
) (*GoogleAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc: %w", err)
	}

	return &GoogleAuthenticator{
		provider: provider,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// GoogleIdentity is the subset of ID token claims the sign-in flow
// needs.
type GoogleIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

func (g *GoogleAuthenticator) Exchange(
	ctx context.Context,
	code string,
) (*GoogleIdentity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", core.ErrTokenInvalid)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf(
			"no id_token in token response: %w",
			core.ErrTokenInvalid,
		)
	}

	verifier := g.provider.Verifier(&oidc.Config{ClientID: g.oauth.ClientID})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", core.ErrTokenInvalid)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}

	return &GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// GoogleSignIn resolves the Google identity to a local account,
// linking or creating one as needed, then issues the usual token
// pair.
func (s *Service) GoogleSignIn(
	ctx context.Context,
	google *GoogleAuthenticator,
	req GoogleSignInRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	identity, err := google.Exchange(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	if !identity.EmailVerified {
		return nil, fmt.Errorf(
			"google email not verified: %w",
			core.ErrUnauthorized,
		)
	}

	user, err := s.resolveGoogleUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

func (s *Service) resolveGoogleUser(
	ctx context.Context,
	identity *GoogleIdentity,
) (*UserInfo, error) {
	account, err := s.repo.FindOAuthAccount(
		ctx,
		ProviderGoogle,
		identity.Subject,
	)
	if err == nil {
		user, getErr := s.userProvider.GetByID(ctx, account.UserID)
		if getErr != nil {
			return nil, fmt.Errorf("get linked user: %w", getErr)
		}
		return user, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("find oauth account: %w", err)
	}

	// No link yet. An existing account with the same email gets
	// linked; Google has already verified control of the address.
	user, err := s.userProvider.GetByEmail(ctx, identity.Email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		user, err = s.userProvider.Create(
			ctx,
			identity.Email,
			nil,
			identity.Name,
			true,
		)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}

		if err := s.planProvider.EnsureForUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
	} else if !user.EmailVerified {
		if err := s.userProvider.MarkEmailVerified(
			ctx,
			s.db,
			user.Email,
		); err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.EmailVerified = true
	}

	link := &OAuthAccount{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Provider:          ProviderGoogle,
		ProviderAccountID: identity.Subject,
		CreatedAt:         time.Now(),
	}

	if err := s.repo.CreateOAuthAccount(ctx, link); err != nil {
		return nil, fmt.Errorf("link oauth account: %w", err)
	}

	return user, nil
}
