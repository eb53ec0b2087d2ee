package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tumourscan/internal/auth"
	"tumourscan/internal/cache"
	"tumourscan/internal/model"
	"tumourscan/internal/repository"
)

// userCacheTTL bounds how long a deactivated account can keep using a cached lookup.
const userCacheTTL = time.Minute

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&in.Role, validation.In(string(model.RoleDoctor), string(model.RoleResearcher), string(model.RoleAdmin))),
		validation.Field(&in.Specialization, validation.When(in.Role == string(model.RoleDoctor), validation.Required)),
	)
}

// LoginResult carries an issued token.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// AuthService manages accounts and bearer tokens.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*LoginResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	// Authenticate resolves a bearer token to an active user.
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *auth.Tokens
	cache  cache.UserCache
	now    func() time.Time
}

// NewAuthService builds the account service. A nil userCache falls back to an in-process LRU.
func NewAuthService(users repository.UserRepository, tokens *auth.Tokens, userCache cache.UserCache) AuthService {
	if userCache == nil {
		userCache = cache.NewLRU(0, userCacheTTL)
	}
	return &authService{
		users:  users,
		tokens: tokens,
		cache:  userCache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = string(model.RoleDoctor)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, &model.User{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           model.Role(in.Role),
		Specialization: in.Specialization,
		LicenseNumber:  in.LicenseNumber,
		IsActive:       true,
		CreatedAt:      s.now(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return s.issue(u)
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}
	return s.issue(u)
}

func (s *authService) issue(u *model.User) (*LoginResult, error) {
	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *authService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	u, ok := s.cache.Get(ctx, userID)
	if !ok {
		u, err = s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: unknown subject", auth.ErrInvalidToken)
			}
			return nil, err
		}
		s.cache.Add(ctx, u)
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}
	return u, nil
}
