// Package services содержит логику бизнес-уровня для регистрации, входа,
// восстановления пароля и профиля пользователя.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/otp"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/password"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// Ошибки, которые обработчики переводят в HTTP-статусы.
var (
	ErrEmailExists          = errors.New("email already exist")
	ErrRegistrationNotFound = errors.New("not found! please register again")
	ErrInvalidOTP           = errors.New("invalid OTP!")
	ErrOTPExpired           = errors.New("OTP expired!")
	ErrUserNotFound         = errors.New("user not found")
	ErrCredentialMismatch   = errors.New("Credential not match!")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrResetNotAllowed      = errors.New("please verify OTP first")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrNothingToUpdate      = errors.New("nothing to update")
)

const (
	registerKeyPrefix = "register-verify-otp:"
	forgotKeyPrefix   = "forgot-password-otp:"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
}

// OTPStore хранит незавершённые регистрации и сбросы пароля.
type OTPStore interface {
	PutHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	GetHash(ctx context.Context, key string) (map[string]string, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// EmailPublisher ставит письмо в очередь на отправку.
type EmailPublisher interface {
	Publish(ctx context.Context, message any) error
}

// FileStore сохраняет аватары.
type FileStore interface {
	Save(r io.Reader, originalName string) (string, error)
	Download(ctx context.Context, url string) (string, error)
	Remove(name string) error
	URL(name string) string
}

// LoginResult токен и профиль после успешного входа.
type LoginResult struct {
	Token            string       `json:"token"`
	User             *models.User `json:"data"`
	CategoryIncluded bool         `json:"categoryIncluded"`
}

// AuthService отвечает за регистрацию, авторизацию и восстановление пароля.
type AuthService struct {
	users     UserRepository
	otps      OTPStore
	emails    EmailPublisher
	files     FileStore
	jwtMaker  jwt.Maker
	otpTTL    time.Duration
	verifyTTL time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, otps OTPStore, emails EmailPublisher, files FileStore,
	jwtMaker jwt.Maker, cfg config.OTP, log *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		otps:      otps,
		emails:    emails,
		files:     files,
		jwtMaker:  jwtMaker,
		otpTTL:    cfg.OTPTTL,
		verifyTTL: cfg.VerifiedResetTTL,
		log:       log,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// publish ошибки очереди не прерывают запрос.
func (s *AuthService) publish(ctx context.Context, msg models.EmailMessage) {
	if err := s.emails.Publish(ctx, msg); err != nil {
		s.log.Warn("failed to publish email job", slog.String("kind", msg.Kind), sl.Err(err))
	}
}

// present возвращает копию пользователя с абсолютной ссылкой на аватар.
func (s *AuthService) present(u *models.User) *models.User {
	out := *u
	if u.Avatar != nil {
		url := s.files.URL(*u.Avatar)
		out.Avatar = &url
	}
	return &out
}

func (s *AuthService) login(u *models.User) (*LoginResult, error) {
	token, err := s.jwtMaker.GenerateToken(u.ID, u.Email, u.Type)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:            token,
		User:             s.present(u),
		CategoryIncluded: u.Category != nil && *u.Category != "",
	}, nil
}

func (s *AuthService) checkOTP(fields map[string]string, code string) error {
	if fields["otp"] != code {
		return ErrInvalidOTP
	}
	exp, err := strconv.ParseInt(fields["expiration"], 10, 64)
	if err != nil || otp.Expired(exp, s.now()) {
		return ErrOTPExpired
	}
	return nil
}

func (s *AuthService) newOTP() (code, expiration string, err error) {
	code, err = otp.Generate()
	if err != nil {
		return "", "", err
	}
	exp := otp.ExpiresAt(s.now(), s.otpTTL).UnixMilli()
	return code, strconv.FormatInt(exp, 10), nil
}

// Register сохраняет заявку на регистрацию и отправляет код подтверждения.
// Возвращает сгенерированный код.
func (s *AuthService) Register(ctx context.Context, name, email, rawPassword string) (string, error) {
	const op = "services.auth.Register"
	email = normalizeEmail(email)

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return "", ErrEmailExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	code, expiration, err := s.newOTP()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	err = s.otps.PutHash(ctx, registerKeyPrefix+email, map[string]string{
		"name":          name,
		"email":         email,
		"password_hash": hashed,
		"otp":           code,
		"expiration":    expiration,
	}, s.otpTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EmailMessage{Kind: models.EmailRegisterOTP, To: email, Name: name, OTP: code})
	return code, nil
}

// VerifyEmail проверяет код и создаёт пользователя.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*LoginResult, error) {
	const op = "services.auth.VerifyEmail"
	email = normalizeEmail(email)
	key := registerKeyPrefix + email

	fields, err := s.otps.GetHash(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return nil, ErrRegistrationNotFound
	}
	// ключ мог истечь и быть пересоздан повторной отправкой кода без данных заявки
	if fields["password_hash"] == "" {
		if err = s.otps.Invalidate(ctx, key); err != nil {
			s.log.Warn("failed to delete broken registration", sl.Op(op), sl.Err(err))
		}
		return nil, ErrRegistrationNotFound
	}
	if err = s.checkOTP(fields, code); err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Name:         fields["name"],
		Email:        email,
		PasswordHash: fields["password_hash"],
		Type:         models.RoleUser,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.otps.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to delete registration otp", sl.Op(op), sl.Err(err))
	}
	s.log.Info("user registered", slog.String("user_id", user.ID))

	res, err := s.login(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ResendRegistrationOTP выдаёт новый код для незавершённой регистрации.
func (s *AuthService) ResendRegistrationOTP(ctx context.Context, email string) (string, error) {
	const op = "services.auth.ResendRegistrationOTP"
	email = normalizeEmail(email)
	key := registerKeyPrefix + email

	fields, err := s.otps.GetHash(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return "", ErrRegistrationNotFound
	}

	code, expiration, err := s.newOTP()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = s.otps.PutHash(ctx, key, map[string]string{"otp": code, "expiration": expiration}, s.otpTTL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EmailMessage{Kind: models.EmailRegisterOTP, To: email, Name: fields["name"], OTP: code})
	return code, nil
}

// SocialAuth входит существующим пользователем или создаёт нового со случайным паролем.
// created сообщает, что пользователь был создан.
func (s *AuthService) SocialAuth(ctx context.Context, email, name, image string) (res *LoginResult, created bool, err error) {
	const op = "services.auth.SocialAuth"
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		res, err = s.login(user)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		return res, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var avatar *string
	if image != "" {
		file, err := s.files.Download(ctx, image)
		if err != nil {
			s.log.Warn("failed to download social avatar", sl.Op(op), sl.Err(err))
		} else {
			avatar = &file
		}
	}

	raw, err := password.Random()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	hashed, err := password.GetHash(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	user, err = s.users.CreateUser(ctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Type:         models.RoleUser,
		Avatar:       avatar,
	})
	if err != nil {
		if avatar != nil {
			_ = s.files.Remove(*avatar)
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	res, err = s.login(user)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return res, true, nil
}

// Login вход пользователя мобильного приложения.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	const op = "services.auth.Login"
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Type == models.RoleAdmin {
		return nil, ErrUserNotFound
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, ErrInvalidCredentials
	}

	res, err := s.login(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// AdminLogin вход в панель администратора.
func (s *AuthService) AdminLogin(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	const op = "services.auth.AdminLogin"
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCredentialMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Type != models.RoleAdmin {
		return nil, ErrCredentialMismatch
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, ErrInvalidCredentials
	}

	res, err := s.login(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ForgotPassword отправляет код для сброса пароля.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	const op = "services.auth.ForgotPassword"
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	code, expiration, err := s.newOTP()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	err = s.otps.PutHash(ctx, forgotKeyPrefix+email, map[string]string{
		"email":                         email,
		"otp":                           code,
		"expiration":                    expiration,
		"userId":                        user.ID,
		"permission_to_update_password": "false",
	}, s.otpTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EmailMessage{Kind: models.EmailForgotPasswordOTP, To: email, Name: user.Name, OTP: code})
	return code, nil
}

// VerifyForgotPasswordOTP проверяет код и разрешает смену пароля.
func (s *AuthService) VerifyForgotPasswordOTP(ctx context.Context, email, code string) error {
	const op = "services.auth.VerifyForgotPasswordOTP"
	key := forgotKeyPrefix + normalizeEmail(email)

	fields, err := s.otps.GetHash(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return ErrRegistrationNotFound
	}
	if err = s.checkOTP(fields, code); err != nil {
		return err
	}

	if err = s.otps.PutHash(ctx, key, map[string]string{"permission_to_update_password": "true"}, s.verifyTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetPassword задаёт новый пароль после проверки кода.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	const op = "services.auth.ResetPassword"
	key := forgotKeyPrefix + normalizeEmail(email)

	fields, err := s.otps.GetHash(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if fields["permission_to_update_password"] != "true" || fields["userId"] == "" {
		return ErrResetNotAllowed
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.UpdatePassword(ctx, fields["userId"], hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.otps.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to delete reset otp", sl.Op(op), sl.Err(err))
	}
	return nil
}

// ResendForgotPasswordOTP выдаёт новый код сброса пароля.
func (s *AuthService) ResendForgotPasswordOTP(ctx context.Context, email string) (string, error) {
	const op = "services.auth.ResendForgotPasswordOTP"
	email = normalizeEmail(email)
	key := forgotKeyPrefix + email

	fields, err := s.otps.GetHash(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return s.ForgotPassword(ctx, email)
	}

	code, expiration, err := s.newOTP()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	err = s.otps.PutHash(ctx, key, map[string]string{
		"otp":                           code,
		"expiration":                    expiration,
		"permission_to_update_password": "false",
	}, s.otpTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EmailMessage{Kind: models.EmailForgotPasswordOTP, To: email, OTP: code})
	return code, nil
}

// ChangePassword меняет пароль авторизованного пользователя.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "services.auth.ChangePassword"
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfile обновляет профиль и при необходимости заменяет аватар.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd models.UserUpdate, avatar *filestore.Upload) (*models.User, error) {
	const op = "services.auth.UpdateProfile"
	if upd.Category != nil && !models.ValidCategory(*upd.Category) {
		return nil, ErrInvalidCategory
	}
	if upd.Empty() && avatar == nil {
		return nil, ErrNothingToUpdate
	}

	current, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if avatar != nil {
		name, err := s.files.Save(avatar.Reader, avatar.Filename)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.Avatar = &name
	}

	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if upd.Avatar != nil {
			_ = s.files.Remove(*upd.Avatar)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if avatar != nil && current.Avatar != nil {
		if err = s.files.Remove(*current.Avatar); err != nil {
			s.log.Warn("failed to remove old avatar", sl.Op(op), sl.Err(err))
		}
	}
	return s.present(user), nil
}

// Me возвращает профиль пользователя.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "services.auth.Me"
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.present(user), nil
}

// EnsureAdmin создаёт учётную запись администратора, если её ещё нет.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, rawPassword string) error {
	const op = "services.auth.EnsureAdmin"
	if email == "" || rawPassword == "" {
		return nil
	}
	email = normalizeEmail(email)

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.users.CreateUser(ctx, models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: hashed,
		Type:         models.RoleAdmin,
	})
	if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("bootstrap admin created", slog.String("email", email))
	return nil
}
