// Package auth handles the Gmail sign-in flow and the session token handed
// to the browser after it completes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"support_inbox/core/port/out"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	providerGoogle  = "google"
	sessionIssuer   = "support-inbox"
	defaultStateTTL = 10 * time.Minute
	defaultTTL      = 24 * time.Hour
)

// Gmail scopes needed to read, send and relabel messages.
var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
}

var ErrSessionSecretMissing = errors.New("session secret not configured")

// ProfileFetcher resolves the address of the signed-in account.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, token *oauth2.Token) (*out.ProviderProfile, error)
}

type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	SessionSecret string
	SessionTTL    time.Duration
	StateTTL      time.Duration

	// Endpoint overrides google.Endpoint; tests point it at a local server.
	Endpoint *oauth2.Endpoint
}

// Status is the sign-in state reported to the UI.
type Status struct {
	Configured  bool       `json:"configured"`
	Connected   bool       `json:"connected"`
	Email       string     `json:"email,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Session is the result of a completed sign-in.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// OAuthService runs the authorization-code flow for a single Gmail account
// and hands out its (auto-refreshing) token.
type OAuthService struct {
	oauthConfig *oauth2.Config // nil when Google credentials are missing
	states      out.OAuthStateStore
	profiles    ProfileFetcher

	sessionSecret []byte
	sessionTTL    time.Duration
	stateTTL      time.Duration

	mu          sync.RWMutex
	source      oauth2.TokenSource
	email       string
	connectedAt time.Time

	now func() time.Time
}

func NewOAuthService(cfg Config, states out.OAuthStateStore, profiles ProfileFetcher) *OAuthService {
	var oauthConfig *oauth2.Config
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		endpoint := google.Endpoint
		if cfg.Endpoint != nil {
			endpoint = *cfg.Endpoint
		}
		oauthConfig = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       gmailScopes,
			Endpoint:     endpoint,
		}
	} else {
		logger.Warn("google oauth not configured, gmail mode disabled")
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultTTL
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}

	return &OAuthService{
		oauthConfig:   oauthConfig,
		states:        states,
		profiles:      profiles,
		sessionSecret: []byte(cfg.SessionSecret),
		sessionTTL:    cfg.SessionTTL,
		stateTTL:      cfg.StateTTL,
		now:           time.Now,
	}
}

// Configured reports whether Google credentials are present.
func (s *OAuthService) Configured() bool {
	return s.oauthConfig != nil
}

// =============================================================================
// Authorization flow
// =============================================================================

// AuthURL starts a sign-in: it stores a one-time state and returns the
// consent page URL.
func (s *OAuthService) AuthURL(ctx context.Context) (string, error) {
	if s.oauthConfig == nil {
		return "", apperr.Unavailable("google oauth", errors.New("client credentials not configured"))
	}

	state := uuid.NewString()
	if err := s.states.StoreState(ctx, state, s.stateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// HandleCallback completes a sign-in. The state must match one issued by
// AuthURL and is consumed by this call.
func (s *OAuthService) HandleCallback(ctx context.Context, code, state string) (*Session, error) {
	if s.oauthConfig == nil {
		return nil, apperr.Unavailable("google oauth", errors.New("client credentials not configured"))
	}
	if code == "" {
		return nil, apperr.MissingField("code")
	}
	if err := s.states.ValidateState(ctx, state); err != nil {
		return nil, apperr.OAuthFailed(providerGoogle, err)
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.OAuthFailed(providerGoogle, fmt.Errorf("failed to exchange token: %w", err))
	}

	// The source outlives the callback request.
	source := s.oauthConfig.TokenSource(context.WithoutCancel(ctx), token)

	email := ""
	if s.profiles != nil {
		profile, err := s.profiles.GetProfile(ctx, token)
		if err != nil {
			return nil, apperr.OAuthFailed(providerGoogle, fmt.Errorf("failed to get profile: %w", err))
		}
		email = profile.Email
	}

	s.mu.Lock()
	s.source = source
	s.email = email
	s.connectedAt = s.now()
	s.mu.Unlock()

	logger.WithField("email", email).Info("gmail account connected")

	signed, expiresAt, err := s.IssueSession(email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: signed, Email: email, ExpiresAt: expiresAt}, nil
}

// Token returns a valid access token, refreshing it when needed.
func (s *OAuthService) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()

	if source == nil {
		return nil, apperr.ProviderNotReady()
	}
	token, err := source.Token()
	if err != nil {
		logger.WithError(err).Warn("gmail token refresh failed")
		return nil, apperr.InvalidToken("Gmail session expired, please sign in again")
	}
	return token, nil
}

// Email returns the signed-in address, or "" when signed out.
func (s *OAuthService) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

func (s *OAuthService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Configured: s.oauthConfig != nil, Connected: s.source != nil, Email: s.email}
	if s.source != nil {
		t := s.connectedAt
		st.ConnectedAt = &t
	}
	return st
}

// Disconnect forgets the token. Issued sessions stay valid until expiry but
// provider calls fail with ProviderNotReady.
func (s *OAuthService) Disconnect() {
	s.mu.Lock()
	email := s.email
	s.source = nil
	s.email = ""
	s.connectedAt = time.Time{}
	s.mu.Unlock()

	if email != "" {
		logger.WithField("email", email).Info("gmail account disconnected")
	}
}

// =============================================================================
// Session tokens
// =============================================================================

// IssueSession signs an HS256 session token for email.
func (s *OAuthService) IssueSession(email string) (string, time.Time, error) {
	if len(s.sessionSecret) == 0 {
		return "", time.Time{}, apperr.InternalWithError(ErrSessionSecretMissing)
	}

	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifySession parses and validates a session token.
func (s *OAuthService) VerifySession(tokenString string) (*SessionClaims, error) {
	if len(s.sessionSecret) == 0 {
		return nil, apperr.InternalWithError(ErrSessionSecretMissing)
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.sessionSecret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.InvalidToken("session expired")
		}
		return nil, apperr.InvalidToken("invalid session token")
	}
	return claims, nil
}
