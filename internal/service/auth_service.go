package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/config"
	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	pw "github.com/AminElhag/Liyaqa-sub035/internal/password"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
	"github.com/AminElhag/Liyaqa-sub035/internal/token"
)

// AuthResult is returned from login and refresh flows.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`

	User domain.User `json:"-"`
}

// AuthError is a client-visible authentication failure. The description is
// deliberately generic for credential and token failures so callers cannot
// probe why something was rejected.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

func invalidCredentials() *AuthError {
	return newAuthError("invalid_grant", "Wrong email or password.", http.StatusBadRequest)
}

func invalidRefreshToken() *AuthError {
	return newAuthError("invalid_grant", "Invalid refresh token.", http.StatusBadRequest)
}

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// AuthService encapsulates login, token rotation, and logout flows.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.RefreshTokenRepository
	issuer    *token.Issuer
	validator *token.Validator
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, issuer *token.Issuer, validator *token.Validator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		issuer:    issuer,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/AminElhag/Liyaqa-sub035/internal/service"),
		now:       time.Now,
	}
}

// Login authenticates a user with email and password within a tenant. Wrong
// email and wrong password fail identically. Repeated failures lock the
// account for a cooldown period.
func (s *AuthService) Login(ctx context.Context, tenantID uuid.UUID, email, password, deviceInfo string) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	ctx = tenant.WithTenant(ctx, tenantID)

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentials()
		}
		span.RecordError(err)
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.recordFailedLogin(ctx, &user)
		return nil, invalidCredentials()
	}

	if !user.CanLogin(s.now()) {
		return nil, newAuthError("account_unavailable",
			"Account is "+strings.ToLower(string(user.Status))+". Please contact support.",
			http.StatusForbidden)
	}

	s.recordSuccessfulLogin(ctx, &user)

	result, err := s.issueTokens(ctx, user, deviceInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("login.success", "tenant_id", user.TenantID, "user_id", user.ID)
	return result, nil
}

// Refresh rotates a refresh token: the presented token is validated, its hash
// atomically consumed, and a fresh pair issued. A token that was already
// rotated, revoked, expired, or never issued fails with the same generic
// outcome.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, deviceInfo string) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.validator.ValidateRefresh(rawRefresh)
	if err != nil {
		return nil, invalidRefreshToken()
	}

	ctx = tenant.WithTenant(ctx, claims.TenantID)

	record, err := s.tokens.Consume(ctx, token.Hash(rawRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidRefreshToken()
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh consume: %w", err)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidRefreshToken()
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh load user: %w", err)
	}

	if !user.CanLogin(s.now()) {
		return nil, newAuthError("account_unavailable",
			"Account is "+strings.ToLower(string(user.Status))+".",
			http.StatusForbidden)
	}

	result, err := s.issueTokens(ctx, user, deviceInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("refresh_token.rotated", "tenant_id", user.TenantID, "user_id", user.ID)
	return result, nil
}

// Logout revokes the presented refresh token. Unknown tokens are ignored so
// logout stays idempotent.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if strings.TrimSpace(rawRefresh) == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, token.Hash(rawRefresh)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout revoke: %w", err)
	}
	s.audit("logout")
	return nil
}

// LogoutAll revokes every refresh token of a user across all devices.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutAll")
	defer span.End()

	if err := s.tokens.RevokeAllByUser(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("logout all: %w", err)
	}
	s.audit("logout.all_devices", "user_id", userID)
	return nil
}

// Register creates a new user within the tenant and issues a first token pair.
func (s *AuthService) Register(ctx context.Context, tenantID uuid.UUID, email, password, displayName string, role domain.Role) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	ctx = tenant.WithTenant(ctx, tenantID)

	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return nil, newAuthError("invalid_request", "Email is already registered.", http.StatusConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return nil, fmt.Errorf("register lookup: %w", err)
	}

	hash, err := pw.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        normalized,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         role,
		Status:       domain.UserStatusActive,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("register create user: %w", err)
	}

	result, err := s.issueTokens(ctx, user, "")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("register.success", "tenant_id", tenantID, "user_id", user.ID)
	return result, nil
}

// CurrentUser loads the authenticated user's record for /me.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User, deviceInfo string) (*AuthResult, error) {
	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, hash, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.tokens.Save(ctx, domain.RefreshToken{
		UserID:     user.ID,
		TenantID:   user.TenantID,
		TokenHash:  hash,
		DeviceInfo: deviceInfo,
		ExpiresAt:  s.now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTokenTTL().Seconds()),
		User:         user,
	}, nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, user *domain.User) {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxFailedLogins && user.Status == domain.UserStatusActive {
		until := s.now().Add(lockoutDuration)
		user.Status = domain.UserStatusLocked
		user.LockedUntil = &until
		s.audit("login.account_locked", "tenant_id", user.TenantID, "user_id", user.ID)
	}
	if err := s.users.Update(ctx, *user); err != nil {
		s.log().Warn("record failed login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *AuthService) recordSuccessfulLogin(ctx context.Context, user *domain.User) {
	now := s.now()
	user.FailedLoginAttempts = 0
	user.Status = domain.UserStatusActive
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, *user); err != nil {
		s.log().Warn("record successful login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", s.now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.log().Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
