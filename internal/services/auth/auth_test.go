package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictions-backend/internal/cache"
	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	customjwt "github.com/magabrotheeeer/predictions-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/password"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/auth"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *UserRepoMock) UpdateProfile(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, message any) error {
	return m.Called(ctx, message).Error(0)
}

type FileStoreMock struct {
	mock.Mock
}

func (m *FileStoreMock) Save(r io.Reader, originalName string) (string, error) {
	args := m.Called(r, originalName)
	return args.String(0), args.Error(1)
}

func (m *FileStoreMock) Download(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

func (m *FileStoreMock) Remove(name string) error {
	return m.Called(name).Error(0)
}

func (m *FileStoreMock) URL(name string) string {
	return "http://cdn/" + name
}

type fixture struct {
	svc   *services.AuthService
	users *UserRepoMock
	pub   *PublisherMock
	files *FileStoreMock
	mr    *miniredis.Miniredis
	maker *customjwt.MakerImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })

	f := &fixture{
		users: new(UserRepoMock),
		pub:   new(PublisherMock),
		files: new(FileStoreMock),
		mr:    mr,
		maker: customjwt.NewJWTMaker("test-secret", time.Hour),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = services.NewAuthService(f.users, c, f.pub, f.files, f.maker,
		config.OTP{OTPTTL: 5 * time.Minute, VerifiedResetTTL: 10 * time.Minute}, log)
	return f
}

func mustHash(t *testing.T, raw string) string {
	t.Helper()
	h, err := password.GetHash(raw)
	require.NoError(t, err)
	return h
}

func TestAuthService_Register(t *testing.T) {
	t.Run("email already exists", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(&models.User{ID: "u1"}, nil)

		_, err := f.svc.Register(context.Background(), "Alice", "A@example.com", "secret")
		assert.ErrorIs(t, err, services.ErrEmailExists)
		f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("stores pending registration and publishes otp", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
		f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(m models.EmailMessage) bool {
			return m.Kind == models.EmailRegisterOTP && m.To == "a@example.com" && m.Name == "Alice"
		})).Return(nil).Once()

		code, err := f.svc.Register(context.Background(), "Alice", "a@example.com", "secret")
		require.NoError(t, err)
		assert.Len(t, code, 4)

		key := "register-verify-otp:a@example.com"
		assert.Equal(t, code, f.mr.HGet(key, "otp"))
		assert.Equal(t, 5*time.Minute, f.mr.TTL(key))
		assert.NoError(t, password.CompareHash(f.mr.HGet(key, "password_hash"), "secret"))
		f.pub.AssertExpectations(t)
	})

	t.Run("publish failure does not fail registration", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		_, err := f.svc.Register(context.Background(), "Alice", "a@example.com", "secret")
		assert.NoError(t, err)
	})
}

func TestAuthService_VerifyEmail(t *testing.T) {
	const key = "register-verify-otp:a@example.com"

	register := func(t *testing.T, f *fixture) string {
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
		code, err := f.svc.Register(context.Background(), "Alice", "a@example.com", "secret")
		require.NoError(t, err)
		return code
	}

	t.Run("no pending registration", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyEmail(context.Background(), "a@example.com", "1234")
		assert.ErrorIs(t, err, services.ErrRegistrationNotFound)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newFixture(t)
		code := register(t, f)
		wrong := "1000"
		if code == wrong {
			wrong = "1001"
		}
		_, err := f.svc.VerifyEmail(context.Background(), "a@example.com", wrong)
		assert.ErrorIs(t, err, services.ErrInvalidOTP)
	})

	t.Run("expired code", func(t *testing.T) {
		f := newFixture(t)
		code := register(t, f)
		f.mr.HSet(key, "expiration", "1")

		_, err := f.svc.VerifyEmail(context.Background(), "a@example.com", code)
		assert.ErrorIs(t, err, services.ErrOTPExpired)
	})

	t.Run("hash recreated without registration data", func(t *testing.T) {
		f := newFixture(t)
		f.mr.HSet(key, "otp", "1234", "expiration", "9999999999999")

		_, err := f.svc.VerifyEmail(context.Background(), "a@example.com", "1234")
		assert.ErrorIs(t, err, services.ErrRegistrationNotFound)
		f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		assert.False(t, f.mr.Exists(key))
	})

	t.Run("creates user and returns token", func(t *testing.T) {
		f := newFixture(t)
		code := register(t, f)
		f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Email == "a@example.com" && u.Name == "Alice" && u.Type == models.RoleUser
		})).Return(&models.User{ID: "u1", Name: "Alice", Email: "a@example.com", Type: models.RoleUser}, nil)

		res, err := f.svc.VerifyEmail(context.Background(), "a@example.com", code)
		require.NoError(t, err)
		assert.Equal(t, "u1", res.User.ID)
		assert.False(t, res.CategoryIncluded)
		assert.False(t, f.mr.Exists(key))

		claims, err := f.maker.ParseToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, models.RoleUser, claims.Role)
	})
}

func TestAuthService_ResendRegistrationOTP(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResendRegistrationOTP(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, services.ErrRegistrationNotFound)

	f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	_, err = f.svc.Register(context.Background(), "Alice", "a@example.com", "secret")
	require.NoError(t, err)

	code, err := f.svc.ResendRegistrationOTP(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, f.mr.HGet("register-verify-otp:a@example.com", "otp"))
	assert.Equal(t, "Alice", f.mr.HGet("register-verify-otp:a@example.com", "name"))
	f.pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestAuthService_Login(t *testing.T) {
	hash := mustHash(t, "secret")
	category := models.CategorySports

	tests := []struct {
		name    string
		admin   bool
		user    *models.User
		repoErr error
		pass    string
		wantErr error
	}{
		{name: "unknown email", repoErr: repository.ErrNotFound, pass: "secret", wantErr: services.ErrUserNotFound},
		{name: "admin cannot use user login", user: &models.User{ID: "a", Type: models.RoleAdmin, PasswordHash: hash}, pass: "secret", wantErr: services.ErrUserNotFound},
		{name: "wrong password", user: &models.User{ID: "u", Type: models.RoleUser, PasswordHash: hash}, pass: "bad", wantErr: services.ErrInvalidCredentials},
		{name: "success", user: &models.User{ID: "u", Type: models.RoleUser, PasswordHash: hash, Category: &category}, pass: "secret"},
		{name: "admin login rejects user", admin: true, user: &models.User{ID: "u", Type: models.RoleUser, PasswordHash: hash}, pass: "secret", wantErr: services.ErrCredentialMismatch},
		{name: "admin login unknown", admin: true, repoErr: repository.ErrNotFound, pass: "secret", wantErr: services.ErrCredentialMismatch},
		{name: "admin login wrong password", admin: true, user: &models.User{ID: "a", Type: models.RoleAdmin, PasswordHash: hash}, pass: "bad", wantErr: services.ErrInvalidCredentials},
		{name: "admin login success", admin: true, user: &models.User{ID: "a", Type: models.RoleAdmin, PasswordHash: hash}, pass: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.user != nil {
				f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(tt.user, nil)
			} else {
				f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, tt.repoErr)
			}

			var res *services.LoginResult
			var err error
			if tt.admin {
				res, err = f.svc.AdminLogin(context.Background(), "a@example.com", tt.pass)
			} else {
				res, err = f.svc.Login(context.Background(), "a@example.com", tt.pass)
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, tt.user.Category != nil, res.CategoryIncluded)
		})
	}
}

func TestAuthService_ForgotPasswordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const key = "forgot-password-otp:a@example.com"

	f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(&models.User{ID: "u1", Name: "Alice"}, nil)
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(m models.EmailMessage) bool {
		return m.Kind == models.EmailForgotPasswordOTP
	})).Return(nil)

	require.ErrorIs(t, f.svc.ResetPassword(ctx, "a@example.com", "new"), services.ErrResetNotAllowed)

	code, err := f.svc.ForgotPassword(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "false", f.mr.HGet(key, "permission_to_update_password"))
	assert.Equal(t, "u1", f.mr.HGet(key, "userId"))

	require.ErrorIs(t, f.svc.ResetPassword(ctx, "a@example.com", "new"), services.ErrResetNotAllowed)

	require.NoError(t, f.svc.VerifyForgotPasswordOTP(ctx, "a@example.com", code))
	assert.Equal(t, "true", f.mr.HGet(key, "permission_to_update_password"))
	assert.Equal(t, 10*time.Minute, f.mr.TTL(key))

	f.users.On("UpdatePassword", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
		return password.CompareHash(h, "new-secret") == nil
	})).Return(nil).Once()
	require.NoError(t, f.svc.ResetPassword(ctx, "a@example.com", "new-secret"))
	assert.False(t, f.mr.Exists(key))
	f.users.AssertExpectations(t)
}

func TestAuthService_ForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetUserByEmail", mock.Anything, "x@example.com").Return(nil, repository.ErrNotFound)

	_, err := f.svc.ForgotPassword(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestAuthService_ResendForgotPasswordOTPResetsPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const key = "forgot-password-otp:a@example.com"
	f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(&models.User{ID: "u1"}, nil)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	code, err := f.svc.ForgotPassword(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyForgotPasswordOTP(ctx, "a@example.com", code))

	next, err := f.svc.ResendForgotPasswordOTP(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, next, f.mr.HGet(key, "otp"))
	assert.Equal(t, "false", f.mr.HGet(key, "permission_to_update_password"))
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", PasswordHash: mustHash(t, "old")}, nil)

	err := f.svc.ChangePassword(context.Background(), "u1", "wrong", "new")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	f.users.On("UpdatePassword", mock.Anything, "u1", mock.Anything).Return(nil).Once()
	require.NoError(t, f.svc.ChangePassword(context.Background(), "u1", "old", "new"))
	f.users.AssertExpectations(t)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	bad := "Poker"
	name := "Alice B"
	oldAvatar := "old.png"

	t.Run("invalid category", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateProfile(context.Background(), "u1", models.UserUpdate{Category: &bad}, nil)
		assert.ErrorIs(t, err, services.ErrInvalidCategory)
	})

	t.Run("nothing to update", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateProfile(context.Background(), "u1", models.UserUpdate{}, nil)
		assert.ErrorIs(t, err, services.ErrNothingToUpdate)
	})

	t.Run("new avatar replaces old file", func(t *testing.T) {
		f := newFixture(t)
		upload := &filestore.Upload{Reader: strings.NewReader("img"), Filename: "me.png"}
		newAvatar := "new.png"

		f.users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Avatar: &oldAvatar}, nil)
		f.files.On("Save", upload.Reader, "me.png").Return(newAvatar, nil)
		f.users.On("UpdateProfile", mock.Anything, "u1", mock.MatchedBy(func(u models.UserUpdate) bool {
			return u.Avatar != nil && *u.Avatar == newAvatar && *u.Name == name
		})).Return(&models.User{ID: "u1", Name: name, Avatar: &newAvatar}, nil)
		f.files.On("Remove", oldAvatar).Return(nil).Once()

		u, err := f.svc.UpdateProfile(context.Background(), "u1", models.UserUpdate{Name: &name}, upload)
		require.NoError(t, err)
		assert.Equal(t, "http://cdn/new.png", *u.Avatar)
		f.files.AssertExpectations(t)
	})

	t.Run("failed update removes uploaded file", func(t *testing.T) {
		f := newFixture(t)
		upload := &filestore.Upload{Reader: strings.NewReader("img"), Filename: "me.png"}

		f.users.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Avatar: &oldAvatar}, nil)
		f.files.On("Save", upload.Reader, "me.png").Return("new.png", nil)
		f.users.On("UpdateProfile", mock.Anything, "u1", mock.Anything).Return(nil, errors.New("db down"))
		f.files.On("Remove", "new.png").Return(nil).Once()

		_, err := f.svc.UpdateProfile(context.Background(), "u1", models.UserUpdate{}, upload)
		require.Error(t, err)
		f.files.AssertNotCalled(t, "Remove", oldAvatar)
	})
}

func TestAuthService_SocialAuth(t *testing.T) {
	t.Run("existing user logs in", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(&models.User{ID: "u1", Type: models.RoleUser}, nil)

		res, created, err := f.svc.SocialAuth(context.Background(), "a@example.com", "Alice", "http://img")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "u1", res.User.ID)
		f.files.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	})

	t.Run("new user gets downloaded avatar", func(t *testing.T) {
		f := newFixture(t)
		avatar := "abc.jpg"
		f.users.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
		f.files.On("Download", mock.Anything, "http://img").Return(avatar, nil)
		f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Avatar != nil && *u.Avatar == avatar && u.PasswordHash != ""
		})).Return(&models.User{ID: "u2", Type: models.RoleUser, Avatar: &avatar}, nil)

		res, created, err := f.svc.SocialAuth(context.Background(), "a@example.com", "Alice", "http://img")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "http://cdn/abc.jpg", *res.User.Avatar)
	})
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	t.Run("creates missing admin", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "root@example.com").Return(nil, repository.ErrNotFound)
		f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Type == models.RoleAdmin && u.Email == "root@example.com"
		})).Return(&models.User{ID: "a1"}, nil).Once()

		require.NoError(t, f.svc.EnsureAdmin(context.Background(), "root@example.com", "pw"))
		f.users.AssertExpectations(t)
	})

	t.Run("existing admin is kept", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetUserByEmail", mock.Anything, "root@example.com").Return(&models.User{ID: "a1"}, nil)

		require.NoError(t, f.svc.EnsureAdmin(context.Background(), "root@example.com", "pw"))
		f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("disabled without credentials", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.EnsureAdmin(context.Background(), "", ""))
		f.users.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})
}
