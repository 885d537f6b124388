package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/cache"
	"github.com/spec-kit/catalog-service/internal/config"
	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/events"
	"github.com/spec-kit/catalog-service/internal/repository"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type authFixture struct {
	svc        *AuthService
	store      *repository.InMemoryCredentialStore
	clock      *abtime.ManualTime
	dispatcher *recordingDispatcher
}

func newAuthFixture(t *testing.T, limiter LoginLimiter) *authFixture {
	t.Helper()
	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "catalog-test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}
	f := &authFixture{
		store:      repository.NewInMemoryCredentialStore(),
		clock:      abtime.NewManualAtTime(time.Unix(1700000000, 0).UTC()),
		dispatcher: &recordingDispatcher{},
	}
	f.svc = NewAuthService(AuthDependencies{
		Credentials: f.store,
		Hasher:      auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens:      tokens,
		Limiter:     limiter,
		Dispatcher:  f.dispatcher,
		Clock:       f.clock,
	})
	return f
}

func TestRegisterTwiceFails(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	cred, err := f.svc.Register(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if cred.Role != domain.RoleStandard {
		t.Fatalf("registration must create a standard account, got %v", cred.Role)
	}
	if cred.PasswordHash == "pw1" {
		t.Fatalf("password must be stored hashed")
	}

	if _, err := f.svc.Register(ctx, "alice", "pw2"); !errors.Is(err, auth.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("original password must still work: %v", err)
	}
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", strings.Repeat("é", auth.MaxPasswordBytes))
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if exists, _ := f.store.ExistsByUsername(ctx, "alice"); exists {
		t.Fatalf("rejected registration must not create an account")
	}

	if _, err := f.svc.Register(ctx, "alice", strings.Repeat("é", auth.MaxPasswordBytes/2)); err != nil {
		t.Fatalf("Register() at the byte limit error: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	_, wrongPassword := f.svc.Login(ctx, "alice", "wrongpw")
	_, unknownUser := f.svc.Login(ctx, "nonexistent", "anything")

	if !errors.Is(wrongPassword, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if wrongPassword != unknownUser {
		t.Fatalf("failures must be identical: %v vs %v", wrongPassword, unknownUser)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	session, err := f.svc.Login(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if session.Identity.Username != "alice" || session.Identity.Role != domain.RoleStandard {
		t.Fatalf("unexpected identity %+v", session.Identity)
	}
	if want := f.clock.Now().Add(time.Hour); !session.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, session.ExpiresAt)
	}

	claims, err := f.svc.TokenCodec().Verify(session.Token, f.clock.Now())
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %q", claims.Subject)
	}

	got := f.dispatcher.types()
	want := []events.EventType{events.EventUserRegistered, events.EventLoginSucceeded}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestCreateAdmin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	cred, err := f.svc.CreateAdmin(ctx, "root", "rootpw")
	if err != nil {
		t.Fatalf("CreateAdmin() error: %v", err)
	}
	if cred.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %v", cred.Role)
	}
	identity, err := f.svc.Authenticate(ctx, "root", "rootpw")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if identity.Role != domain.RoleAdmin {
		t.Fatalf("expected admin identity, got %v", identity.Role)
	}
}

func TestLoginThrottling(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newAuthFixture(t, cache.NewLoginLimiter(client, 2, 15*time.Minute))
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Login(ctx, "alice", "bad"); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := f.svc.Login(ctx, "alice", "pw1"); !errors.Is(err, auth.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts even with the right password, got %v", err)
	}

	mr.FastForward(16 * time.Minute)
	if _, err := f.svc.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("expected login after window lapsed, got %v", err)
	}
}

func TestLoginLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newAuthFixture(t, cache.NewLoginLimiter(client, 1, time.Minute))
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	mr.SetError("LOADING")
	if _, err := f.svc.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("expected login to succeed while redis fails, got %v", err)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	cfg := config.AuthConfig{BootstrapAdminUsername: "root"}
	if err := BootstrapAdmin(ctx, f.svc, cfg, logger); err != nil {
		t.Fatalf("BootstrapAdmin() error: %v", err)
	}
	entries := logs.FilterMessage("initial admin created with generated password").All()
	if len(entries) != 1 {
		t.Fatalf("expected generated password to be logged once, got %d entries", len(entries))
	}
	password, _ := entries[0].ContextMap()["password"].(string)
	if len(password) != generatedPasswordLength {
		t.Fatalf("expected %d character password, got %q", generatedPasswordLength, password)
	}
	identity, err := f.svc.Authenticate(ctx, "root", password)
	if err != nil {
		t.Fatalf("generated password must authenticate: %v", err)
	}
	if identity.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %v", identity.Role)
	}

	if err := BootstrapAdmin(ctx, f.svc, cfg, logger); err != nil {
		t.Fatalf("second BootstrapAdmin() error: %v", err)
	}
	if logs.FilterMessage("initial admin created with generated password").Len() != 1 {
		t.Fatalf("bootstrap must be idempotent")
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	f := newAuthFixture(t, nil)
	if err := BootstrapAdmin(context.Background(), f.svc, config.AuthConfig{}, zap.NewNop()); err != nil {
		t.Fatalf("BootstrapAdmin() error: %v", err)
	}
	if exists, _ := f.svc.Exists(context.Background(), ""); exists {
		t.Fatalf("no account should be created")
	}
}
