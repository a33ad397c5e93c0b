// Package services содержит оформление оплаты подписки, обработку вебхуков
// платёжного провайдера и статистику транзакций.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/export"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/month"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lock"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// Ошибки оформления оплаты.
var (
	ErrPackageNotFound   = errors.New("subscription package not found")
	ErrPackageInactive   = errors.New("subscription package is not active")
	ErrUserNotFound      = errors.New("user not found")
	ErrPromoNotFound     = errors.New("invalid promo code")
	ErrPromoInactive     = errors.New("promo code is not active")
	ErrPromoExpired      = errors.New("promo code has expired")
	ErrPromoExhausted    = errors.New("promo code usage limit reached")
	ErrCheckoutInProcess = errors.New("checkout is already in progress")
	ErrInvalidYear       = errors.New("year must be between 2000 and 2100")
	ErrPaymentProvider   = errors.New("payment provider error")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

const (
	minYear          = 2000
	maxYear          = 2100
	recentUsersLimit = 20
	checkoutLockTTL  = 30 * time.Second
)

// TransactionRepository хранилище транзакций и связанных сущностей.
type TransactionRepository interface {
	LatestPackage(ctx context.Context) (*models.SubscriptionPackage, error)
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateTransaction(ctx context.Context, t models.Transaction) (*models.Transaction, error)
	CompletePayment(ctx context.Context, p models.CompletedPayment) (bool, error)
	FailTransaction(ctx context.Context, sessionID string) error
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	MonthlyEarnings(ctx context.Context, year int) ([12]float64, error)
	CountUsers(ctx context.Context) (int, error)
	CountPayingUsers(ctx context.Context) (int, error)
	RecentUsers(ctx context.Context, limit int) ([]models.User, error)
	ExportTransactions(ctx context.Context, from, to time.Time) ([]models.TransactionExportRow, error)
}

// Payments checkout и вебхуки платёжного провайдера.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, in paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*paymentprovider.Event, error)
}

// Locker выполняет функцию под распределённой блокировкой.
type Locker interface {
	WithLock(ctx context.Context, name string, expiry time.Duration, tries int, fn func(ctx context.Context) error) error
}

// TransactionService оплата подписки и статистика.
type TransactionService struct {
	repo       TransactionRepository
	payments   Payments
	locker     Locker
	successURL string
	cancelURL  string
	log        *slog.Logger
	now        func() time.Time
}

// NewTransactionService создает новый экземпляр TransactionService.
func NewTransactionService(repo TransactionRepository, payments Payments, locker Locker, cfg config.Stripe, log *slog.Logger) *TransactionService {
	return &TransactionService{
		repo:       repo,
		payments:   payments,
		locker:     locker,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		log:        log,
		now:        time.Now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Checkout создаёт checkout-сессию на текущий пакет с учётом промокода.
// Одновременные попытки одного пользователя выполняются по очереди.
func (s *TransactionService) Checkout(ctx context.Context, userID, promoCode string) (*models.CheckoutResult, error) {
	const op = "services.transaction.Checkout"
	var result *models.CheckoutResult
	err := s.locker.WithLock(ctx, "checkout:"+userID, checkoutLockTTL, 32, func(ctx context.Context) error {
		var err error
		result, err = s.checkout(ctx, userID, promoCode)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, ErrCheckoutInProcess
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("checkout session created", sl.Op(op), slog.String("user_id", userID),
		slog.String("transaction_id", result.TransactionID))
	return result, nil
}

func (s *TransactionService) checkout(ctx context.Context, userID, promoCode string) (*models.CheckoutResult, error) {
	const op = "services.transaction.checkout"
	pkg, err := s.repo.LatestPackage(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pkg.IsActive {
		return nil, ErrPackageInactive
	}

	var promo *models.PromoCode
	if code := strings.ToUpper(strings.TrimSpace(promoCode)); code != "" {
		promo, err = s.repo.GetPromoCodeByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		switch {
		case !promo.IsActive:
			return nil, ErrPromoInactive
		case promo.Expired(s.now()):
			return nil, ErrPromoExpired
		case promo.Exhausted():
			return nil, ErrPromoExhausted
		}
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	original := pkg.Amount
	discount := 0.0
	var promoID *string
	if promo != nil {
		discount = round2(original * promo.Discount / 100)
		promoID = &promo.ID
	}
	final := round2(original - discount)

	metadata := map[string]string{
		paymentprovider.MetaUserID:                userID,
		paymentprovider.MetaSubscriptionPackageID: pkg.ID,
		paymentprovider.MetaOriginalAmount:        strconv.FormatFloat(original, 'f', 2, 64),
		paymentprovider.MetaDiscountAmount:        strconv.FormatFloat(discount, 'f', 2, 64),
		paymentprovider.MetaFinalAmount:           strconv.FormatFloat(final, 'f', 2, 64),
	}
	if promoID != nil {
		metadata[paymentprovider.MetaPromoCodeID] = *promoID
	}

	session, err := s.payments.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		UserID:        userID,
		CustomerEmail: user.Email,
		ProductName:   pkg.Name,
		Amount:        final,
		Currency:      pkg.Currency,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPaymentProvider, err)
	}

	tx, err := s.repo.CreateTransaction(ctx, models.Transaction{
		UserID:                userID,
		SubscriptionPackageID: pkg.ID,
		PromoCodeID:           promoID,
		Amount:                final,
		OriginalAmount:        original,
		DiscountAmount:        discount,
		Currency:              pkg.Currency,
		StripeSessionID:       session.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.CheckoutResult{
		SessionID:      session.ID,
		URL:            session.URL,
		TransactionID:  tx.ID,
		Amount:         final,
		OriginalAmount: original,
		DiscountAmount: discount,
	}, nil
}

// HandleWebhook проверяет подпись события и применяет его. Повторная доставка
// уже обработанного события ничего не меняет. Возвращает тип события.
func (s *TransactionService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	const op = "services.transaction.HandleWebhook"
	event, err := s.payments.ParseEvent(payload, signature)
	if errors.Is(err, paymentprovider.ErrInvalidSignature) {
		return "", ErrInvalidSignature
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if event.Session == nil {
		s.log.Debug("webhook event ignored", slog.String("type", event.Type))
		return event.Type, nil
	}
	session := event.Session

	switch event.Type {
	case paymentprovider.EventCheckoutSessionCompleted:
		if session.Mode != "payment" {
			return event.Type, nil
		}
		applied, err := s.repo.CompletePayment(ctx, models.CompletedPayment{
			SessionID:       session.ID,
			PaymentIntentID: session.PaymentIntentID,
			UserID:          session.UserID(),
			PromoCodeID:     session.Metadata[paymentprovider.MetaPromoCodeID],
		})
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if !applied {
			s.log.Info("checkout session already processed", slog.String("session_id", session.ID))
			return event.Type, nil
		}
		s.log.Info("payment completed", slog.String("session_id", session.ID), slog.String("user_id", session.UserID()))
	case paymentprovider.EventCheckoutSessionExpired:
		if err = s.repo.FailTransaction(ctx, session.ID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	return event.Type, nil
}

// ValidateYear проверяет год отчёта. Ноль заменяется текущим годом.
func (s *TransactionService) ValidateYear(year int) (int, error) {
	if year == 0 {
		return s.now().UTC().Year(), nil
	}
	if year < minYear || year > maxYear {
		return 0, ErrInvalidYear
	}
	return year, nil
}

// Dashboard сводка транзакций за год для админ-панели.
func (s *TransactionService) Dashboard(ctx context.Context, year int) (*models.TransactionStats, error) {
	const op = "services.transaction.Dashboard"
	year, err := s.ValidateYear(year)
	if err != nil {
		return nil, err
	}

	var stats models.TransactionStats
	if stats.TotalEarnings, err = s.repo.RevenueBetween(ctx, time.Time{}, time.Time{}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stats.TotalUsers, err = s.repo.CountUsers(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stats.TotalSubscriptions, err = s.repo.CountPayingUsers(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	monthly, err := s.repo.MonthlyEarnings(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats.EarningsChart = models.EarningsChart{Year: year, Data: make([]models.MonthlyEarning, 0, 12)}
	for i, v := range monthly {
		stats.EarningsChart.Data = append(stats.EarningsChart.Data, models.MonthlyEarning{
			Month:    month.Short(time.Month(i + 1)),
			Earnings: round2(v),
		})
	}

	users, err := s.repo.RecentUsers(ctx, recentUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats.RecentUsers = make([]models.RecentUser, 0, len(users))
	for i, u := range users {
		stats.RecentUsers = append(stats.RecentUsers, models.RecentUser{SL: i + 1, User: u})
	}
	return &stats, nil
}

// Export пишет XLSX-выгрузку транзакций за год в w.
func (s *TransactionService) Export(ctx context.Context, year int, w io.Writer) error {
	const op = "services.transaction.Export"
	year, err := s.ValidateYear(year)
	if err != nil {
		return err
	}
	r := month.Year(year)
	rows, err := s.repo.ExportTransactions(ctx, r.Start, r.End)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = export.Transactions(w, rows); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
