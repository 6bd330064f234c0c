package authpw

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dimaswi/administrasi-sub003/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]store.User),
		byID:    make(map[string]store.User),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	user := f.byID[userID]
	user.PasswordHash = passwordHash
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func TestCreateAccountAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Email:       "ratna@clinic.test",
		Password:    "correct horse",
		DisplayName: "Ratna",
		Role:        "approver",
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if user.Role != "approver" {
		t.Fatalf("expected approver role, got %s", user.Role)
	}

	signedIn, err := svc.SignIn(ctx, "ratna@clinic.test", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("signed in as %s, want %s", signedIn.ID, user.ID)
	}

	if _, err := svc.SignIn(ctx, "ratna@clinic.test", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateAccountRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		Email: "x@clinic.test", Password: "short", DisplayName: "X",
	})
	if err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestCreateAccountNormalizesUnknownRole(t *testing.T) {
	svc := NewService(newFakeUserStore())
	user, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		Email: "y@clinic.test", Password: "long enough", DisplayName: "Y", Role: "superuser",
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if user.Role != "viewer" {
		t.Fatalf("unknown role should normalize to viewer, got %s", user.Role)
	}
}

func TestSignInRejectsInactiveAccount(t *testing.T) {
	fake := newFakeUserStore()
	svc := NewService(fake)
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Email: "z@clinic.test", Password: "long enough", DisplayName: "Z",
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	user.IsActive = false
	fake.byEmail[user.Email] = user
	fake.byID[user.ID] = user

	if _, err := svc.SignIn(ctx, "z@clinic.test", "long enough"); err != ErrInvalidCredentials {
		t.Fatalf("expected inactive account to be rejected, got %v", err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Email: "w@clinic.test", Password: "long enough", DisplayName: "W",
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong", "new password!"); err != ErrInvalidCredentials {
		t.Fatalf("expected wrong current password to fail, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "long enough", "new password!"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "w@clinic.test", "new password!"); err != nil {
		t.Fatalf("SignIn() with new password error = %v", err)
	}
}
