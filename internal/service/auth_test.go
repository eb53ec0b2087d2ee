package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tumourscan/internal/auth"
	"tumourscan/internal/cache"
	"tumourscan/internal/model"
	repoMocks "tumourscan/internal/repository/mocks"
)

func newTestTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(auth.Config{Secret: "test-secret", Issuer: "tumourscan", Audience: "tumourscan-api", TTL: time.Hour})
	require.NoError(t, err)
	return tokens
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		in         RegisterInput
		setupMocks func(mRepo *repoMocks.MockUserRepository)
		wantErr    error
		wantField  string
	}{
		{
			name: "happy path - doctor",
			in:   RegisterInput{Name: "Dr. Grey", Email: " Grey@Hospital.org ", Password: "secret1", Specialization: "Neuroradiology"},
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
					return u.Email == "grey@hospital.org" &&
						u.Role == model.RoleDoctor &&
						u.IsActive &&
						bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) == nil
				})).Return(&model.User{ID: testUserID, Email: "grey@hospital.org", Role: model.RoleDoctor, IsActive: true}, nil)
			},
		},
		{
			name:       "doctor without specialization",
			in:         RegisterInput{Name: "Dr. Grey", Email: "grey@hospital.org", Password: "secret1"},
			setupMocks: func(*repoMocks.MockUserRepository) {},
			wantField:  "specialization",
		},
		{
			name:       "short password",
			in:         RegisterInput{Name: "R", Email: "r@lab.org", Password: "123", Role: "researcher"},
			setupMocks: func(*repoMocks.MockUserRepository) {},
			wantField:  "password",
		},
		{
			name:       "unknown role",
			in:         RegisterInput{Name: "R", Email: "r@lab.org", Password: "secret1", Role: "nurse"},
			setupMocks: func(*repoMocks.MockUserRepository) {},
			wantField:  "role",
		},
		{
			name: "email taken",
			in:   RegisterInput{Name: "R", Email: "r@lab.org", Password: "secret1", Role: "researcher"},
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil, &pgconn.PgError{Code: "23505"})
			},
			wantErr: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockUserRepository)
			svc := NewAuthService(mRepo, newTestTokens(t), nil)
			tt.setupMocks(mRepo)

			res, err := svc.Register(ctx, tt.in)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantField != "":
				var verrs validation.Errors
				if assert.True(t, errors.As(err, &verrs)) {
					assert.Contains(t, verrs, tt.wantField)
				}
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, res.Token)
				assert.Equal(t, testUserID, res.User.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	active := &model.User{ID: testUserID, Email: "grey@hospital.org", PasswordHash: hashed(t, "secret1"), Role: model.RoleDoctor, IsActive: true}
	inactive := *active
	inactive.IsActive = false

	tests := []struct {
		name       string
		password   string
		setupMocks func(mRepo *repoMocks.MockUserRepository)
		wantErr    error
	}{
		{
			name:     "happy path",
			password: "secret1",
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("FindByEmail", ctx, "grey@hospital.org").Return(active, nil)
			},
		},
		{
			name:     "wrong password",
			password: "nope",
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("FindByEmail", ctx, "grey@hospital.org").Return(active, nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			password: "secret1",
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("FindByEmail", ctx, "grey@hospital.org").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "deactivated account",
			password: "secret1",
			setupMocks: func(mRepo *repoMocks.MockUserRepository) {
				mRepo.On("FindByEmail", ctx, "grey@hospital.org").Return(&inactive, nil)
			},
			wantErr: ErrAccountInactive,
		},
		{
			name:       "empty password",
			password:   "",
			setupMocks: func(*repoMocks.MockUserRepository) {},
			wantErr:    ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockUserRepository)
			tokens := newTestTokens(t)
			svc := NewAuthService(mRepo, tokens, cache.NewLRU(8, time.Minute))
			tt.setupMocks(mRepo)

			res, err := svc.Login(ctx, "grey@hospital.org", tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				sub, err := tokens.Verify(res.Token)
				require.NoError(t, err)
				assert.Equal(t, testUserID, sub)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokens(t)
	token, _, err := tokens.Issue(testUserID, model.RoleDoctor)
	require.NoError(t, err)

	t.Run("caches the resolved user", func(t *testing.T) {
		mRepo := new(repoMocks.MockUserRepository)
		svc := NewAuthService(mRepo, tokens, cache.NewLRU(8, time.Minute))
		mRepo.On("FindByID", ctx, testUserID).Return(&model.User{ID: testUserID, IsActive: true}, nil).Once()

		for i := 0; i < 3; i++ {
			u, err := svc.Authenticate(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, testUserID, u.ID)
		}
		mRepo.AssertExpectations(t)
	})

	t.Run("unknown subject", func(t *testing.T) {
		mRepo := new(repoMocks.MockUserRepository)
		svc := NewAuthService(mRepo, tokens, cache.NewLRU(8, time.Minute))
		mRepo.On("FindByID", ctx, testUserID).Return(nil, sql.ErrNoRows)

		_, err := svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("inactive user", func(t *testing.T) {
		mRepo := new(repoMocks.MockUserRepository)
		svc := NewAuthService(mRepo, tokens, cache.NewLRU(8, time.Minute))
		mRepo.On("FindByID", ctx, testUserID).Return(&model.User{ID: testUserID}, nil)

		_, err := svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("garbage token never reaches the repository", func(t *testing.T) {
		mRepo := new(repoMocks.MockUserRepository)
		svc := NewAuthService(mRepo, tokens, cache.NewLRU(8, time.Minute))

		_, err := svc.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		mRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Profile(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockUserRepository)
	svc := NewAuthService(mRepo, newTestTokens(t), nil)

	mRepo.On("FindByID", ctx, testUserID).Return(nil, sql.ErrNoRows)
	_, err := svc.Profile(ctx, testUserID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
