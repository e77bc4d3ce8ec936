package authpw

import (
	"context"
	"errors"
	"testing"

	"lattice/api/internal/store"
)

type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string
	verified   map[string]string // token -> userID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		verified:   make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(_ context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	if user.VerificationToken != "" {
		m.verified[user.VerificationToken] = user.ID
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(_ context.Context, token string) error {
	userID, ok := m.verified[token]
	if !ok {
		return errors.New("invalid token")
	}
	user := m.users[userID]
	user.IsEmailVerified = true
	user.VerificationToken = ""
	m.users[userID] = user
	delete(m.verified, token)
	return nil
}

func TestSignUpAndSignInFlow(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Avery@Example.com",
		Password:    "correct-horse",
		DisplayName: "Avery",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if !resp.RequiresEmailVerify || resp.VerificationToken == "" {
		t.Fatalf("SignUp() should require verification, got %+v", resp)
	}

	// Unverified account signs in but is flagged.
	signIn, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if !signIn.RequiresVerify {
		t.Fatal("SignIn() before verification should set RequiresVerify")
	}

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	signIn, err = svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn() after verify error = %v", err)
	}
	if signIn.RequiresVerify {
		t.Fatal("SignIn() after verification should not set RequiresVerify")
	}
	if signIn.User.Email != "avery@example.com" {
		t.Fatalf("email should be normalized lowercase, got %q", signIn.User.Email)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "password-1", DisplayName: "A"}); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	_, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "password-2", DisplayName: "A2"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate SignUp() error = %v, want ErrEmailExists", err)
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "password-1", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "missing@b.com", Password: "password-1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.com", Password: "short", DisplayName: "A"}); err == nil {
		t.Fatal("SignUp() should reject passwords under 8 characters")
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "", Password: "password-1", DisplayName: "A"}); err == nil {
		t.Fatal("SignUp() should reject empty email")
	}
}
