package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func newAuthService(store *fakeStore) *service.AuthService {
	return service.NewAuthService(store, "test-secret", time.Hour, observability.NewMetrics(), zap.NewNop())
}

func TestLogin_CustomerGetsAccountsAttached(t *testing.T) {
	store := newFakeStore()
	store.addCustomer("somchai", "Somchai Jaidee")
	store.addAccount("somchai", 1500)
	store.addAccount("somchai", 300)
	store.addCredential("somchai", hashFor(t, "password1"), false)

	resp, err := newAuthService(store).Login(context.Background(), &domain.LoginRequest{
		Username: "somchai", Password: "password1",
	})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatalf("expected success with token, got %+v", resp)
	}
	if resp.User.Role != domain.RoleCustomer {
		t.Errorf("expected role CUSTOMER, got %s", resp.User.Role)
	}
	if len(resp.User.Accounts) != 2 {
		t.Errorf("expected 2 accounts attached, got %d", len(resp.User.Accounts))
	}
}

func TestLogin_EmployeeRowWinsOverCustomerRow(t *testing.T) {
	store := newFakeStore()
	store.addCustomer("duangjai", "Duangjai P")
	store.addEmployee("duangjai", domain.RoleDirector, 90000)
	store.addCredential("duangjai", hashFor(t, "secret"), false)

	resp, err := newAuthService(store).Login(context.Background(), &domain.LoginRequest{
		Username: "duangjai", Password: "secret",
	})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if resp.User.Role != domain.RoleDirector {
		t.Errorf("expected employee position to win, got role %s", resp.User.Role)
	}
	if resp.User.Salary != 90000 {
		t.Errorf("expected salary attached, got %f", resp.User.Salary)
	}
}

func TestLogin_AdminUsernameFallback(t *testing.T) {
	store := newFakeStore()
	store.addCredential("admin", hashFor(t, "admin123"), false)

	resp, err := newAuthService(store).Login(context.Background(), &domain.LoginRequest{
		Username: "admin", Password: "admin123",
	})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if resp.User.Role != domain.RoleAdmin {
		t.Errorf("expected role ADMIN, got %s", resp.User.Role)
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	store := newFakeStore()
	store.addCredential("somchai", hashFor(t, "password1"), false)

	svc := newAuthService(store)

	_, errWrongPw := svc.Login(context.Background(), &domain.LoginRequest{
		Username: "somchai", Password: "nope",
	})
	_, errUnknown := svc.Login(context.Background(), &domain.LoginRequest{
		Username: "ghost", Password: "nope",
	})

	var invalid *domain.ErrInvalidCredentials
	if !errors.As(errWrongPw, &invalid) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPw)
	}
	if !errors.As(errUnknown, &invalid) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if errWrongPw.Error() != errUnknown.Error() {
		t.Errorf("responses must not reveal which part was wrong: %q vs %q",
			errWrongPw.Error(), errUnknown.Error())
	}
}

func TestLogin_LockedCredentialRejected(t *testing.T) {
	store := newFakeStore()
	store.addCredential("somchai", hashFor(t, "password1"), true)

	_, err := newAuthService(store).Login(context.Background(), &domain.LoginRequest{
		Username: "somchai", Password: "password1",
	})
	var locked *domain.ErrAccountLocked
	if !errors.As(err, &locked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestValidateToken_RoundTrip(t *testing.T) {
	store := newFakeStore()
	store.addEmployee("malee", domain.RoleStaff, 30000)
	store.addCredential("malee", hashFor(t, "pw"), false)

	svc := newAuthService(store)
	resp, err := svc.Login(context.Background(), &domain.LoginRequest{Username: "malee", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sess, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("expected token to validate, got %v", err)
	}
	if sess.Username != "malee" || sess.Role != domain.RoleStaff {
		t.Errorf("unexpected session: %+v", sess)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expected future expiry, got %v", sess.ExpiresAt)
	}
}

func TestValidateToken_GarbageRejected(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.ValidateToken("not-a-token")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerify_ReturnsFreshIdentity(t *testing.T) {
	store := newFakeStore()
	store.addCustomer("somchai", "Somchai Jaidee")
	store.addCredential("somchai", hashFor(t, "pw"), false)

	svc := newAuthService(store)
	resp, err := svc.Login(context.Background(), &domain.LoginRequest{Username: "somchai", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// An account opened after login shows up on verify.
	store.mu.Lock()
	store.addAccount("somchai", 100)
	store.mu.Unlock()

	user, err := svc.Verify(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(user.Accounts) != 1 {
		t.Errorf("expected refreshed account list, got %d accounts", len(user.Accounts))
	}
}
