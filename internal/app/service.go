package app

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/config"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// DataStore is the persistence contract shared by store.PostgresStore and
// store.MemoryStore.
type DataStore interface {
	CreateAccount(context.Context, store.Account) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByResetToken(context.Context, string) (store.User, error)
	SetPasswordReset(context.Context, string, string, time.Time) error
	UpdateUserPassword(context.Context, string, string) error

	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	GetWorkspace(context.Context, string) (store.Workspace, error)
	InsertWorkspace(context.Context, store.Workspace) error
	UpdateWorkspace(context.Context, string, string, string) error
	DeleteWorkspace(context.Context, string) ([]string, error)
	UpsertWorkspaceMember(context.Context, string, store.Member) error
	RemoveWorkspaceMember(context.Context, string, string) error

	ListProjectsForUser(context.Context, string, string) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	UpdateProject(context.Context, string, string, string) error
	DeleteProject(context.Context, string) ([]string, error)
	UpsertProjectMember(context.Context, string, store.Member) error
	RemoveProjectMember(context.Context, string, string) error

	InsertTask(context.Context, store.Task) error
	ListTasks(context.Context, string, string) ([]store.Task, error)
	GetOwnedTask(context.Context, string, string) (store.Task, error)
	UpdateTask(context.Context, string, string, store.TaskPatch) (store.Task, error)
	DeleteTask(context.Context, string, string) error
	ApplyTaskOrder(context.Context, string, []store.OrderUpdate) (int, error)

	Ping(ctx context.Context) error
}

// SessionStore holds refresh sessions and the access-token deny-list.
type SessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (string, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

// Mailer delivers password reset links.
type Mailer interface {
	IsConfigured() bool
	SendPasswordResetEmail(to, resetURL string) error
}

type Service struct {
	cfg      config.Config
	store    DataStore
	sessions SessionStore
	accounts *authpw.Service
	mailer   Mailer
	search   *search.Service
	logger   *log.Logger
	now      func() time.Time
}

func New(cfg config.Config, dataStore DataStore, sessions SessionStore, logger *log.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		accounts: authpw.NewService(dataStore, cfg.BcryptCost),
		search:   search.NewService(nil, nil, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// WithMailer enables password reset mail delivery.
func (s *Service) WithMailer(mailer Mailer) *Service {
	s.mailer = mailer
	return s
}

func (s *Service) WithSearch(searchService *search.Service) *Service {
	s.search = searchService
	return s
}

// Register creates the account and returns it together with the created
// default workspace and project.
func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (*store.Account, error) {
	account, err := s.accounts.Register(ctx, req)
	if err != nil {
		var validation *authpw.ValidationError
		if errors.As(err, &validation) {
			return nil, fieldError(validation.Field, validation.Message)
		}
		var regErr *authpw.RegistrationError
		if errors.As(err, &regErr) {
			return nil, registrationFailed(regErr.Err)
		}
		return nil, registrationFailed(err)
	}
	s.logger.Info("user registered", "user_id", account.User.ID, "workspace_id", account.Workspace.ID)
	return account, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, invalidCredentials()
		}
		return Session{}, internalError(err)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, unauthorized()
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, unauthorized()
		}
		return Session{}, internalError(err)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, internalError(err)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, unauthorized()
		}
		return Session{}, internalError(err)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID()

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, jti, expiresAt)
	if err != nil {
		return Session{}, internalError(err)
	}

	refresh := util.NewToken("rft", 32)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, internalError(err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken verifies a bearer token and loads its user. Every failure
// a client can cause is reported as Unauthorized.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, unauthorized()
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, internalError(err)
	}
	if revoked {
		return Session{}, unauthorized()
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, unauthorized()
		}
		return Session{}, internalError(err)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		JTI:       claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token", "user_id", session.UserID, "err", err)
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session", "user_id", session.UserID, "err", err)
		}
	}
	return nil
}

func (s *Service) Me(ctx context.Context, session Session) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, unauthorized()
		}
		return store.User{}, internalError(err)
	}
	return user, nil
}

// RequestPasswordReset issues a reset token and mails it when SMTP is set
// up. Without SMTP the token is returned to the caller so local setups can
// finish the flow.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (devToken string, err error) {
	token, err := s.accounts.RequestPasswordReset(ctx, email)
	if err != nil {
		return "", internalError(err)
	}
	if token == "" {
		return "", nil
	}
	if !s.SMTPConfigured() {
		return token, nil
	}

	resetURL := s.cfg.ResetURLBase + "?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordResetEmail(authpw.NormalizeEmail(email), resetURL); err != nil {
		s.logger.Error("send password reset email", "err", err)
	}
	return "", nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.accounts.ResetPassword(ctx, authpw.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	if err == nil {
		return nil
	}
	var validation *authpw.ValidationError
	switch {
	case errors.As(err, &validation):
		return fieldError(validation.Field, validation.Message)
	case errors.Is(err, authpw.ErrInvalidResetToken):
		return fieldError("token", "Invalid or expired reset token")
	default:
		return internalError(err)
	}
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
