// Package auth реализует HTTP-обработчики регистрации, входа, восстановления
// пароля и профиля пользователя.
//
// Каждый обработчик декодирует и валидирует тело запроса, делегирует операцию
// сервису и переводит доменные ошибки в HTTP-статусы.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/auth"
)

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	VerifyEmail(ctx context.Context, email, code string) (*services.LoginResult, error)
	ResendRegistrationOTP(ctx context.Context, email string) (string, error)
	SocialAuth(ctx context.Context, email, name, image string) (*services.LoginResult, bool, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	AdminLogin(ctx context.Context, email, password string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyForgotPasswordOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, password string) error
	ResendForgotPasswordOTP(ctx context.Context, email string) (string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, upd models.UserUpdate, avatar *filestore.Upload) (*models.User, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы раздела /auth.
type Handler struct {
	log           *slog.Logger
	service       Service
	validate      *validator.Validate
	exposeOTP     bool  // отдавать OTP в ответе, только для local и dev
	maxUploadSize int64 // предел размера multipart-формы
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, exposeOTP bool, maxUploadSize int64) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		validate:      validator.New(),
		exposeOTP:     exposeOTP,
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRequest данные регистрации.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// OTPRequest email и одноразовый код.
type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=4,numeric"`
}

// EmailRequest запрос с одним email.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CredentialsRequest email и пароль.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordRequest новый пароль после проверки кода.
type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SocialAuthRequest данные от внешнего провайдера входа.
type SocialAuthRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Image string `json:"image"`
}

// ChangePasswordRequest смена пароля авторизованным пользователем.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// loginResponse раскладывает токен и профиль на верхний уровень ответа.
type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.LoginResult
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) otpData(email, code string) map[string]any {
	data := map[string]any{"email": email}
	if h.exposeOTP {
		data["otp"] = code
	}
	return data
}

// fail переводит доменную ошибку в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrEmailExists):
		response.JSON(w, r, http.StatusUnauthorized, response.Error("Email already exist"))
	case errors.Is(err, services.ErrRegistrationNotFound),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrOTPExpired),
		errors.Is(err, services.ErrResetNotAllowed),
		errors.Is(err, services.ErrNothingToUpdate):
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, filestore.ErrUnsupportedType):
		response.JSON(w, r, http.StatusBadRequest, response.Error("Only image files are allowed"))
	case errors.Is(err, filestore.ErrTooLarge):
		response.JSON(w, r, http.StatusBadRequest, response.Error("Image is too large"))
	case errors.Is(err, services.ErrInvalidCategory):
		response.JSON(w, r, http.StatusBadRequest, response.ErrorWithData("Invalid category",
			map[string]any{"validCategories": models.Categories}))
	case errors.Is(err, services.ErrUserNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error("User not found"))
	case errors.Is(err, services.ErrCredentialMismatch):
		response.JSON(w, r, http.StatusNotFound, response.Error(err.Error()))
	case errors.Is(err, services.ErrInvalidCredentials):
		response.JSON(w, r, http.StatusUnauthorized, response.Error("Invalid credentials"))
	default:
		log.Error("request failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("internal server error"))
		return
	}
	log.Info("request rejected", sl.Err(err))
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Сохраняет заявку и отправляет OTP на почту.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Данные пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Email уже занят"
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := h.logger(r, op)

	var req RegisterRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	code, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("registration pending", slog.String("email", req.Email))
	response.JSON(w, r, http.StatusOK, response.OK("OTP sent to your email", h.otpData(req.Email, code)))
}

// VerifyEmail godoc
// @Summary Подтверждение email
// @Description Проверяет OTP и создаёт пользователя.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Email и код"
// @Success 201 {object} loginResponse
// @Failure 400 {object} response.ErrorResponse "Неверный или просроченный код"
// @Router /auth/verify-email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.VerifyEmail"
	log := h.logger(r, op)

	var req OTPRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("user registered", slog.String("user_id", res.User.ID))
	response.JSON(w, r, http.StatusCreated, loginResponse{Success: true, Message: "User registered successfully", LoginResult: res})
}

// ResendRegistrationOTP godoc
// @Summary Повторная отправка кода регистрации
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Заявка не найдена"
// @Router /auth/resend-registration-otp [post]
func (h *Handler) ResendRegistrationOTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResendRegistrationOTP"
	log := h.logger(r, op)

	var req EmailRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	code, err := h.service.ResendRegistrationOTP(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("OTP resent to your email", h.otpData(req.Email, code)))
}

// SocialAuth godoc
// @Summary Вход через внешний провайдер
// @Description Входит существующим пользователем или создаёт нового.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SocialAuthRequest true "Профиль провайдера"
// @Success 200 {object} loginResponse "Вход"
// @Success 201 {object} loginResponse "Регистрация"
// @Router /auth/register/social-auth [post]
func (h *Handler) SocialAuth(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.SocialAuth"
	log := h.logger(r, op)

	var req SocialAuthRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, created, err := h.service.SocialAuth(r.Context(), req.Email, req.Name, req.Image)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	if created {
		log.Info("user registered via social auth", slog.String("user_id", res.User.ID))
		response.JSON(w, r, http.StatusCreated, loginResponse{Success: true, Message: "User registered successfully", LoginResult: res})
		return
	}
	response.JSON(w, r, http.StatusOK, loginResponse{Success: true, Message: "Login successful", LoginResult: res})
}

// Login godoc
// @Summary Вход пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Учетные данные"
// @Success 200 {object} loginResponse
// @Failure 401 {object} response.ErrorResponse "Неверный пароль"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := h.logger(r, op)

	var req CredentialsRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("login success", slog.String("user_id", res.User.ID))
	response.JSON(w, r, http.StatusOK, loginResponse{Success: true, Message: "Login successful", LoginResult: res})
}

// AdminLogin godoc
// @Summary Вход администратора
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Учетные данные"
// @Success 200 {object} loginResponse
// @Failure 401 {object} response.ErrorResponse "Неверный пароль"
// @Failure 404 {object} response.ErrorResponse "Credential not match!"
// @Router /auth/admin/login [post]
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.AdminLogin"
	log := h.logger(r, op)

	var req CredentialsRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("admin login success", slog.String("user_id", res.User.ID))
	response.JSON(w, r, http.StatusOK, loginResponse{Success: true, Message: "Login successful", LoginResult: res})
}

// ForgotPassword godoc
// @Summary Запрос на сброс пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ForgotPassword"
	log := h.logger(r, op)

	var req EmailRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	code, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("OTP sent to your email", h.otpData(req.Email, code)))
}

// VerifyForgotPasswordOTP godoc
// @Summary Проверка кода сброса пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Email и код"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверный или просроченный код"
// @Router /auth/verify-forgot-password-otp [post]
func (h *Handler) VerifyForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.VerifyForgotPasswordOTP"
	log := h.logger(r, op)

	var req OTPRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.VerifyForgotPasswordOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("OTP verified successfully", nil))
}

// ResetPassword godoc
// @Summary Установка нового пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Email и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Код не подтверждён"
// @Router /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResetPassword"
	log := h.logger(r, op)

	var req ResetPasswordRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Password reset successfully", nil))
}

// ResendForgotPasswordOTP godoc
// @Summary Повторная отправка кода сброса пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} response.Response
// @Router /auth/resend-forgot-password-otp [post]
func (h *Handler) ResendForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResendForgotPasswordOTP"
	log := h.logger(r, op)

	var req EmailRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	code, err := h.service.ResendForgotPasswordOTP(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("OTP resent to your email", h.otpData(req.Email, code)))
}

// ChangePassword godoc
// @Summary Смена пароля
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Старый и новый пароль"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверный старый пароль"
// @Router /auth/resetpassword [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ChangePassword"
	log := h.logger(r, op)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.JSON(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	var req ChangePasswordRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Password changed successfully", nil))
}

// UpdateProfile godoc
// @Summary Обновление профиля
// @Description multipart-форма: avatar, name, gender, date_of_birth, category.
// @Tags Auth
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нечего обновлять или неверная категория"
// @Router /auth/update [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.UpdateProfile"
	log := h.logger(r, op)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.JSON(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	if !request.ParseMultipart(w, r, log, h.maxUploadSize) {
		return
	}
	avatar, closeFile, err := request.FormFile(r, "avatar")
	if err != nil {
		log.Error("failed to read avatar", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid avatar file"))
		return
	}
	defer closeFile()

	upd := models.UserUpdate{
		Name:        request.OptionalValue(r, "name"),
		Gender:      request.OptionalValue(r, "gender"),
		DateOfBirth: request.OptionalValue(r, "date_of_birth"),
		Category:    request.OptionalValue(r, "category"),
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, upd, avatar)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("profile updated", slog.String("user_id", userID))
	response.JSON(w, r, http.StatusOK, response.OK("Profile updated successfully", user))
}

// Me godoc
// @Summary Профиль текущего пользователя
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Me"
	log := h.logger(r, op)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.JSON(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("User retrieved successfully", user))
}
