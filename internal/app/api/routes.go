// Package api собирает HTTP-приложение: маршруты, middleware и зависимости.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/auth"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/email"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/health"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/predictions"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/setting"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/subscription"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/transactions"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/users"
	"github.com/magabrotheeeer/predictions-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// Handlers обработчики всех разделов API.
type Handlers struct {
	Auth         *auth.Handler
	Users        *users.Handler
	Predictions  *predictions.Handler
	Subscription *subscription.Handler
	Transactions *transactions.Handler
	Dashboard    *dashboard.Handler
	Email        *email.Handler
	Setting      *setting.Handler
	Health       *health.Handler
}

// Infra сквозные зависимости маршрутизатора.
type Infra struct {
	Tokens     middlewarectx.TokenParser
	Metrics    *middlewarectx.Metrics
	Gatherer   prometheus.Gatherer
	Limiter    *middlewarectx.RateLimiter
	UploadsDir string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, infra Infra, h Handlers) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		infra.Metrics.Middleware,
	)

	authenticated := middlewarectx.JWTMiddleware(infra.Tokens, logger)
	adminOnly := middlewarectx.RequireRole(logger, models.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		// Stripe подписывает тело запроса, лимит и JWT здесь не нужны
		r.Post("/webhooks/stripe", h.Transactions.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(infra.Limiter.Middleware(logger))

			r.Post("/email/send", h.Email.ServeHTTP)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", h.Auth.Register)
				r.Post("/verify-email", h.Auth.VerifyEmail)
				r.Post("/resend-registration-otp", h.Auth.ResendRegistrationOTP)
				r.Post("/register/social-auth", h.Auth.SocialAuth)
				r.Post("/login", h.Auth.Login)
				r.Post("/admin/login", h.Auth.AdminLogin)
				r.Post("/forgot-password", h.Auth.ForgotPassword)
				r.Post("/verify-forgot-password-otp", h.Auth.VerifyForgotPasswordOTP)
				r.Post("/reset-password", h.Auth.ResetPassword)
				r.Post("/resend-forgot-password-otp", h.Auth.ResendForgotPasswordOTP)

				r.Group(func(r chi.Router) {
					r.Use(authenticated)
					r.Post("/resetpassword", h.Auth.ChangePassword)
					r.Patch("/update", h.Auth.UpdateProfile)
					r.Get("/me", h.Auth.Me)
				})
			})

			// Группа с JWT аутентификацией
			r.Group(func(r chi.Router) {
				r.Use(authenticated)

				r.Get("/predictions/users/get-all", h.Predictions.Feed)
				r.Get("/predictions/win-rate", h.Predictions.WinRates)
				r.Get("/subscription/package", h.Subscription.Package)
				r.Post("/transactions/checkout", h.Transactions.Checkout)
				r.Get("/setting", h.Setting.List)
				r.Get("/setting/{key}", h.Setting.Get)

				// Панель администратора
				r.Group(func(r chi.Router) {
					r.Use(adminOnly)

					r.Get("/users/all", h.Users.List)
					r.Get("/users/earnings-parser", h.Users.Earnings)
					r.Get("/users/info/{id}", h.Users.Get)
					r.Get("/users/export", h.Users.Export)

					r.Post("/predictions/create", h.Predictions.Create)
					r.Get("/predictions/get-all", h.Predictions.List)
					r.Patch("/predictions/update/{id}", h.Predictions.Update)
					r.Delete("/predictions/delete", h.Predictions.Delete)

					r.Post("/subscription/package", h.Subscription.SavePackage)
					r.Post("/subscription/promo-code", h.Subscription.CreatePromoCode)
					r.Get("/subscription/promo-code", h.Subscription.ListPromoCodes)
					r.Delete("/subscription/promo-code/{id}", h.Subscription.DeletePromoCode)

					r.Get("/transactions/dashboard", h.Transactions.Dashboard)
					r.Get("/transactions/export", h.Transactions.Export)

					r.Get("/dashboard/info", h.Dashboard.Info)
					r.Get("/dashboard/predictions", h.Dashboard.Predictions)

					r.Put("/setting/{key}", h.Setting.Put)
					r.Delete("/setting/{key}", h.Setting.Delete)
				})
			})
		})
	})

	r.Get("/health", h.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(infra.UploadsDir))))
}

// WithCORS оборачивает маршрутизатор CORS-заголовками для разрешённых источников.
func WithCORS(next http.Handler, origins []string) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Stripe-Signature"}),
	)(next)
}
