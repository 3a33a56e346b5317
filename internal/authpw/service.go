// Package authpw provides email/password registration, login and password reset.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const (
	minPasswordLength  = 8
	passwordSymbols    = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
	defaultProjectName = "My First Project"
	resetTTL           = time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("Invalid username or password")
	// ErrInvalidResetToken is returned for an unknown or expired reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// ValidationError reports input that failed a registration or reset rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RegistrationError wraps a store failure that aborted registration.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// AccountStore defines the storage interface for auth
type AccountStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByResetToken(ctx context.Context, token string) (store.User, error)
	CreateAccount(ctx context.Context, account store.Account) error
	SetPasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

// Service provides email/password authentication
type Service struct {
	store    AccountStore
	hashCost int
	now      func() time.Time
}

// NewService creates a new auth service. A zero hashCost uses bcrypt.DefaultCost.
func NewService(store AccountStore, hashCost int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{
		store:    store,
		hashCost: hashCost,
		now:      time.Now,
	}
}

// RegisterRequest contains registration parameters
type RegisterRequest struct {
	Email         string
	Password      string
	WorkspaceName string
	ProjectName   string
}

// Register creates the user with a default workspace and project. The store
// writes all three records atomically.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.Account, error) {
	email := NormalizeEmail(req.Email)
	password := strings.TrimSpace(req.Password)

	if !emailPattern.MatchString(email) {
		return nil, &ValidationError{Field: "email", Message: "Please provide a valid email address"}
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, emailTaken()
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, &RegistrationError{Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, &RegistrationError{Err: fmt.Errorf("hash password: %w", err)}
	}

	workspaceName := strings.TrimSpace(req.WorkspaceName)
	if workspaceName == "" {
		workspaceName = email + "'s Workspace"
	}
	projectName := strings.TrimSpace(req.ProjectName)
	if projectName == "" {
		projectName = defaultProjectName
	}

	userID := util.NewID()
	workspaceID := util.NewID()
	projectID := util.NewID()
	admin := []store.Member{{UserID: userID, Role: "admin", Email: email}}

	account := store.Account{
		User: store.User{
			ID:                 userID,
			Email:              email,
			PasswordHash:       string(hash),
			DefaultWorkspaceID: workspaceID,
			DefaultProjectID:   projectID,
		},
		Workspace: store.Workspace{
			ID:      workspaceID,
			Name:    workspaceName,
			Slug:    slug.Make(workspaceName),
			OwnerID: userID,
			Members: admin,
		},
		Project: store.Project{
			ID:          projectID,
			Name:        projectName,
			Slug:        slug.Make(projectName),
			WorkspaceID: workspaceID,
			Members:     admin,
		},
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, emailTaken()
		}
		return nil, &RegistrationError{Err: err}
	}

	return &account, nil
}

func emailTaken() error {
	return &ValidationError{Field: "email", Message: "Email is already in use"}
}

// Authenticate checks the credentials and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset stores a reset token on the user. It returns an empty
// token without error when the email is unknown so callers cannot probe for
// registered addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	token := util.NewToken("", 32)
	if err := s.store.SetPasswordReset(ctx, user.ID, token, s.now().Add(resetTTL)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// ResetPasswordRequest contains password reset parameters
type ResetPasswordRequest struct {
	Token       string
	NewPassword string
}

// ResetPassword sets a new password using a reset token and clears the token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	token := strings.TrimSpace(req.Token)
	password := strings.TrimSpace(req.NewPassword)
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	user, err := s.store.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword enforces the password policy: at least eight characters
// with an uppercase letter, a digit and a symbol.
func ValidatePassword(password string) error {
	var hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if len(password) < minPasswordLength || !hasUpper || !hasDigit || !hasSymbol {
		return &ValidationError{
			Field:   "password",
			Message: "Password must be at least 8 characters and include an uppercase letter, a number and a symbol",
		}
	}
	return nil
}
