package app

import (
	"context"
	"errors"
	"time"

	"github.com/fieldbase/fieldbase/adapters/auth"
	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned by Login when the email or password is
// wrong. Both cases look the same to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is a signed token plus its expiry, handed to the client on
// register and login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService handles workspace signup and member login.
type AuthService struct {
	workspaces ports.WorkspaceStore
	users      ports.UserStore
	tokens     *auth.TokenService
	hasher     ports.Hasher
	idgen      ports.IDGenerator
	clock      ports.Clock
	logger     zerolog.Logger
}

// NewAuthService creates the authentication service.
func NewAuthService(
	workspaces ports.WorkspaceStore,
	users ports.UserStore,
	tokens *auth.TokenService,
	hasher ports.Hasher,
	idgen ports.IDGenerator,
	clock ports.Clock,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		workspaces: workspaces,
		users:      users,
		tokens:     tokens,
		hasher:     hasher,
		idgen:      idgen,
		clock:      clock,
		logger:     logger.With().Str("service", "auth").Logger(),
	}
}

// Register creates a workspace and its first member, then opens a session.
func (s *AuthService) Register(ctx context.Context, workspaceSlug, workspaceName, email, name, password string) (schema.Workspace, Session, error) {
	now := s.clock.Now().UTC()

	ws := schema.Workspace{
		ID:        s.idgen.New(),
		Slug:      workspaceSlug,
		Name:      workspaceName,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		return schema.Workspace{}, Session{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return schema.Workspace{}, Session{}, err
	}

	user := ports.User{
		ID:           s.idgen.New(),
		WorkspaceID:  ws.ID,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return schema.Workspace{}, Session{}, err
	}

	session, err := s.openSession(user)
	if err != nil {
		return schema.Workspace{}, Session{}, err
	}

	s.logger.Info().Str("workspace", ws.Slug).Msg("workspace registered")
	return ws, session, nil
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(user)
}

// Validate parses a session token.
func (s *AuthService) Validate(token string) (*auth.Claims, error) {
	return s.tokens.Validate(token)
}

func (s *AuthService) openSession(user ports.User) (Session, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID, user.WorkspaceID, user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}
