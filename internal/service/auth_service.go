package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/events"
	"github.com/spec-kit/catalog-service/internal/observability"
	"github.com/spec-kit/catalog-service/internal/repository"
	"github.com/spec-kit/catalog-service/pkg/util/errorutil"
)

// LoginLimiter throttles repeated failed logins for a username.
type LoginLimiter interface {
	Allow(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  *domain.Identity
}

// AuthService verifies credentials, registers accounts and issues tokens.
type AuthService struct {
	credentials repository.CredentialStore
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenCodec
	limiter     LoginLimiter
	dispatcher  events.Dispatcher
	clock       abtime.AbstractTime
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// AuthDependencies encapsulates collaborators of the auth service. Limiter,
// Dispatcher, Clock, Logger and Metrics are optional.
type AuthDependencies struct {
	Credentials repository.CredentialStore
	Hasher      *auth.PasswordHasher
	Tokens      *auth.TokenCodec
	Limiter     LoginLimiter
	Dispatcher  events.Dispatcher
	Clock       abtime.AbstractTime
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		credentials: deps.Credentials,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		limiter:     deps.Limiter,
		dispatcher:  deps.Dispatcher,
		clock:       deps.Clock,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	if s.limiter == nil {
		s.limiter = noopLimiter{}
	}
	if s.clock == nil {
		s.clock = abtime.NewRealTime()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords fail identically with auth.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.Identity, error) {
	cred, err := s.credentials.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyNothing(password)
			s.loginFailed(ctx, username, "unknown_user")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, cred.PasswordHash) {
		s.loginFailed(ctx, username, "wrong_password")
		return nil, auth.ErrInvalidCredentials
	}
	return cred.Identity(), nil
}

// Login authenticates the caller and issues a signed token for them.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	allowed, err := s.limiter.Allow(ctx, username)
	if err != nil {
		s.logger.Warn("login limiter unavailable", zap.Error(err))
		allowed = true
	}
	if !allowed {
		s.metrics.RecordAuthFailure("throttled")
		s.publish(ctx, events.EventLoginThrottled, username, events.Actor{Username: username}, nil)
		return nil, auth.ErrTooManyAttempts
	}

	identity, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Reset(ctx, username); err != nil {
		s.logger.Warn("reset login failures", zap.String("username", username), zap.Error(err))
	}

	token, claims, err := s.tokens.Issue(identity.Username, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventLoginSucceeded, identity.Username, events.ActorFrom(identity), nil)
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, Identity: identity}, nil
}

// Register creates a standard account. The role is never caller-supplied.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.Credential, error) {
	cred, err := s.createCredential(ctx, username, password, domain.RoleStandard)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventUserRegistered, cred.Username, events.Actor{Username: cred.Username},
		events.UserRegisteredPayload{Role: cred.Role})
	return cred, nil
}

// CreateAdmin creates an elevated account. It is reachable only from
// operator tooling such as the startup bootstrap, never from an endpoint.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*domain.Credential, error) {
	cred, err := s.createCredential(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventUserRegistered, cred.Username, events.Actor{},
		events.UserRegisteredPayload{Role: cred.Role})
	return cred, nil
}

// Exists reports whether username is registered.
func (s *AuthService) Exists(ctx context.Context, username string) (bool, error) {
	return s.credentials.ExistsByUsername(ctx, username)
}

// TokenCodec exposes the codec for middleware usage.
func (s *AuthService) TokenCodec() *auth.TokenCodec {
	return s.tokens
}

func (s *AuthService) createCredential(ctx context.Context, username, password string, role domain.Role) (*domain.Credential, error) {
	if len(password) > auth.MaxPasswordBytes {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes),
			map[string]any{"password": fmt.Sprintf("max_bytes=%d", auth.MaxPasswordBytes)},
		)
	}
	exists, err := s.credentials.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, auth.ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	cred, err := s.credentials.Create(ctx, username, hash, role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, auth.ErrUsernameTaken
		}
		return nil, err
	}
	return cred, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username, reason string) {
	s.metrics.RecordAuthFailure("invalid_credentials")
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		s.logger.Warn("record login failure", zap.String("username", username), zap.Error(err))
	}
	s.publish(ctx, events.EventLoginFailed, username, events.Actor{Username: username},
		events.LoginFailedPayload{Reason: reason})
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, resource string, actor events.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Resource:  resource,
		Actor:     actor,
		Timestamp: s.clock.Now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (noopLimiter) RecordFailure(context.Context, string) error { return nil }

func (noopLimiter) Reset(context.Context, string) error { return nil }
