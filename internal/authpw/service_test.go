package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
)

// mockAccountStore is a map-backed AccountStore for testing
type mockAccountStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	accounts   []store.Account
	createErr  error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockAccountStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockAccountStore) GetUserByResetToken(ctx context.Context, token string) (store.User, error) {
	for _, user := range m.users {
		if user.ResetToken != "" && user.ResetToken == token {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockAccountStore) CreateAccount(ctx context.Context, account store.Account) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.users[account.User.ID] = account.User
	m.emailIndex[account.User.Email] = account.User.ID
	m.accounts = append(m.accounts, account)
	return nil
}

func (m *mockAccountStore) SetPasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetToken = token
	user.ResetExpiresAt = &expiresAt
	m.users[userID] = user
	return nil
}

func (m *mockAccountStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetExpiresAt = nil
	m.users[userID] = user
	return nil
}

func newTestService(m *mockAccountStore) *Service {
	return NewService(m, bcrypt.MinCost)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockAccountStore()
	svc := newTestService(mockStore)

	t.Run("successful registration creates defaults", func(t *testing.T) {
		account, err := svc.Register(ctx, RegisterRequest{
			Email:    "  Alice@X.com ",
			Password: "Passw0rd!",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if account.User.Email != "alice@x.com" {
			t.Errorf("expected normalized email, got %q", account.User.Email)
		}
		if account.Workspace.Name != "alice@x.com's Workspace" {
			t.Errorf("unexpected workspace name %q", account.Workspace.Name)
		}
		if account.Project.Name != "My First Project" {
			t.Errorf("unexpected project name %q", account.Project.Name)
		}
		if account.Project.Slug != "my-first-project" {
			t.Errorf("unexpected project slug %q", account.Project.Slug)
		}
		if account.Workspace.OwnerID != account.User.ID {
			t.Error("expected registering user to own the workspace")
		}
		if len(account.Workspace.Members) != 1 || account.Workspace.Members[0].Role != "admin" {
			t.Errorf("expected a single admin workspace member, got %+v", account.Workspace.Members)
		}
		if account.User.DefaultWorkspaceID != account.Workspace.ID || account.User.DefaultProjectID != account.Project.ID {
			t.Error("expected default ids linked onto the user")
		}
		if account.Project.WorkspaceID != account.Workspace.ID {
			t.Error("expected default project inside default workspace")
		}
	})

	t.Run("custom names", func(t *testing.T) {
		account, err := svc.Register(ctx, RegisterRequest{
			Email:         "bob@x.com",
			Password:      "Passw0rd!",
			WorkspaceName: "Acme",
			ProjectName:   "Launch",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if account.Workspace.Name != "Acme" || account.Project.Name != "Launch" {
			t.Errorf("unexpected names %q / %q", account.Workspace.Name, account.Project.Name)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "alice@x.com", Password: "Passw0rd!"})
		var validation *ValidationError
		if !errors.As(err, &validation) || validation.Field != "email" {
			t.Fatalf("expected email validation error, got %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "Passw0rd!"})
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	weak := map[string]string{
		"no digit":     "Password!",
		"no uppercase": "passw0rd!",
		"no symbol":    "Passw0rdd",
		"too short":    "Pa0!",
	}
	for name, password := range weak {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, RegisterRequest{Email: "weak@x.com", Password: password})
			var validation *ValidationError
			if !errors.As(err, &validation) || validation.Field != "password" {
				t.Fatalf("expected password validation error, got %v", err)
			}
		})
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	mockStore := newMockAccountStore()
	mockStore.createErr = errors.New("connection reset")
	svc := newTestService(mockStore)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "alice@x.com", Password: "Passw0rd!"})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if len(mockStore.users) != 0 {
		t.Error("expected no users after failed registration")
	}
}

func TestRegisterRaceOnEmailIsValidationError(t *testing.T) {
	mockStore := newMockAccountStore()
	mockStore.createErr = store.ErrEmailTaken
	svc := newTestService(mockStore)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "alice@x.com", Password: "Passw0rd!"})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockAccountStore())
	if _, err := svc.Register(ctx, RegisterRequest{Email: "alice@x.com", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("successful login", func(t *testing.T) {
		user, err := svc.Authenticate(ctx, "ALICE@x.com", "Passw0rd!")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "alice@x.com" {
			t.Errorf("expected alice@x.com, got %s", user.Email)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice@x.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if err.Error() != "Invalid username or password" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody@x.com", "Passw0rd!")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockAccountStore()
	svc := newTestService(mockStore)
	if _, err := svc.Register(ctx, RegisterRequest{Email: "alice@x.com", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("unknown email yields no token and no error", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "nobody@x.com")
		if err != nil || token != "" {
			t.Fatalf("RequestPasswordReset() = %q, %v", token, err)
		}
	})

	t.Run("reset with valid token", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "alice@x.com")
		if err != nil || token == "" {
			t.Fatalf("RequestPasswordReset() = %q, %v", token, err)
		}
		if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "N3wPassword!"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.Authenticate(ctx, "alice@x.com", "Passw0rd!"); err == nil {
			t.Error("expected old password to stop working")
		}
		if _, err := svc.Authenticate(ctx, "alice@x.com", "N3wPassword!"); err != nil {
			t.Errorf("expected new password to work: %v", err)
		}
		if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "An0therOne!"}); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expected reused token to fail, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "alice@x.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "N3wPassword!"}); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
	})

	t.Run("weak new password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: "some-token", NewPassword: "short"})
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
