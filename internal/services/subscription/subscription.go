// Package services содержит бизнес-логику пакета подписки и промокодов,
// синхронизированных с платёжным провайдером, и кеширование пакета.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// Ошибки подписки и промокодов.
var (
	ErrPackageNotFound = errors.New("subscription package not found")
	ErrInvalidPackage  = errors.New("invalid subscription package")
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	ErrInvalidMaxUses  = errors.New("maxUses must be positive")
	ErrPromoExists     = errors.New("Promo code already exists")
	ErrPromoNotFound   = errors.New("promo code not found")
	// ErrPaymentProvider ошибка на стороне платёжного провайдера.
	ErrPaymentProvider = errors.New("payment provider error")
)

const (
	packageCacheKey = "subscription:package"
	packageCacheTTL = 10 * time.Minute
	defaultCurrency = "usd"
)

// SubscriptionRepository хранилище пакетов и промокодов.
type SubscriptionRepository interface {
	LatestPackage(ctx context.Context) (*models.SubscriptionPackage, error)
	CreatePackage(ctx context.Context, p models.SubscriptionPackage) (*models.SubscriptionPackage, error)
	UpdatePackage(ctx context.Context, p models.SubscriptionPackage) (*models.SubscriptionPackage, error)
	CreatePromoCode(ctx context.Context, p models.PromoCode) (*models.PromoCode, error)
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetPromoCodeByID(ctx context.Context, id string) (*models.PromoCode, error)
	ListPromoCodes(ctx context.Context, limit, offset int) ([]models.PromoCode, int, error)
	DeletePromoCode(ctx context.Context, id string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значения из кеша по ключам.
	Invalidate(ctx context.Context, keys ...string) error
}

// Payments операции каталога на стороне платёжного провайдера.
type Payments interface {
	CreateProduct(ctx context.Context, name, description string) (string, error)
	ProductExists(ctx context.Context, id string) (bool, error)
	UpdateProduct(ctx context.Context, id, name, description string) error
	CreatePrice(ctx context.Context, productID string, amount float64, currency string) (string, error)
	CreateCoupon(ctx context.Context, name string, percentOff float64) (string, error)
	DeleteCoupon(ctx context.Context, id string) error
	CreatePromotionCode(ctx context.Context, couponID, code string, expiresAt *time.Time, maxUses *int) (string, error)
	DeactivatePromotionCode(ctx context.Context, id string) error
}

// PromoInput данные нового промокода.
type PromoInput struct {
	Code      string
	Discount  float64
	ExpiresAt *time.Time
	MaxUses   *int
}

// SubscriptionService реализует бизнес-логику пакета подписки и промокодов.
type SubscriptionService struct {
	repo     SubscriptionRepository
	cache    Cache
	payments Payments
	log      *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, payments Payments, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		cache:    cache,
		payments: payments,
		log:      log,
	}
}

func providerErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPaymentProvider, err)
}

// SavePackage создаёт пакет, если его ещё нет, иначе частично обновляет последний.
// created сообщает, что пакет был создан.
func (s *SubscriptionService) SavePackage(ctx context.Context, in models.PackageInput) (pkg *models.SubscriptionPackage, created bool, err error) {
	const op = "services.subscription.SavePackage"
	if in.Amount != nil && *in.Amount <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive", ErrInvalidPackage)
	}

	latest, err := s.repo.LatestPackage(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		pkg, err = s.createPackage(ctx, in)
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("%s: %w", op, err)
	default:
		pkg, err = s.updatePackage(ctx, *latest, in)
	}
	if err != nil {
		return nil, false, err
	}

	if err = s.cache.Invalidate(ctx, packageCacheKey); err != nil {
		s.log.Warn("failed to invalidate package cache", sl.Op(op), sl.Err(err))
	}
	return pkg, created, nil
}

func (s *SubscriptionService) createPackage(ctx context.Context, in models.PackageInput) (*models.SubscriptionPackage, error) {
	const op = "services.subscription.createPackage"
	var missing []string
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		missing = append(missing, "name")
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		missing = append(missing, "title")
	}
	if len(in.Description) == 0 {
		missing = append(missing, "description")
	}
	if in.Amount == nil {
		missing = append(missing, "amount")
	}
	if in.Duration == nil || strings.TrimSpace(*in.Duration) == "" {
		missing = append(missing, "duration")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPackage, strings.Join(missing, ", "))
	}

	p := models.SubscriptionPackage{
		Name:        *in.Name,
		Title:       *in.Title,
		Description: in.Description,
		Amount:      *in.Amount,
		Currency:    defaultCurrency,
		Duration:    *in.Duration,
		IsActive:    true,
	}
	if in.Currency != nil && *in.Currency != "" {
		p.Currency = strings.ToLower(*in.Currency)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	productID, err := s.payments.CreateProduct(ctx, p.Name, p.Title)
	if err != nil {
		return nil, providerErr(op, err)
	}
	priceID, err := s.payments.CreatePrice(ctx, productID, p.Amount, p.Currency)
	if err != nil {
		return nil, providerErr(op, err)
	}
	p.StripeProductID = productID
	p.StripePriceID = priceID

	created, err := s.repo.CreatePackage(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription package created", slog.String("id", created.ID))
	return created, nil
}

func (s *SubscriptionService) updatePackage(ctx context.Context, p models.SubscriptionPackage, in models.PackageInput) (*models.SubscriptionPackage, error) {
	const op = "services.subscription.updatePackage"
	oldAmount, oldCurrency := p.Amount, p.Currency

	if in.Name != nil && *in.Name != "" {
		p.Name = *in.Name
	}
	if in.Title != nil && *in.Title != "" {
		p.Title = *in.Title
	}
	if len(in.Description) > 0 {
		p.Description = in.Description
	}
	if in.Amount != nil {
		p.Amount = *in.Amount
	}
	if in.Currency != nil && *in.Currency != "" {
		p.Currency = strings.ToLower(*in.Currency)
	}
	if in.Duration != nil && *in.Duration != "" {
		p.Duration = *in.Duration
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	exists, err := s.payments.ProductExists(ctx, p.StripeProductID)
	if err != nil {
		return nil, providerErr(op, err)
	}
	recreated := false
	if exists {
		if err = s.payments.UpdateProduct(ctx, p.StripeProductID, p.Name, p.Title); err != nil {
			return nil, providerErr(op, err)
		}
	} else {
		s.log.Warn("payment product is missing, creating a new one", slog.String("product_id", p.StripeProductID))
		productID, err := s.payments.CreateProduct(ctx, p.Name, p.Title)
		if err != nil {
			return nil, providerErr(op, err)
		}
		p.StripeProductID = productID
		recreated = true
	}

	if recreated || p.Amount != oldAmount || p.Currency != oldCurrency {
		priceID, err := s.payments.CreatePrice(ctx, p.StripeProductID, p.Amount, p.Currency)
		if err != nil {
			return nil, providerErr(op, err)
		}
		p.StripePriceID = priceID
	}

	updated, err := s.repo.UpdatePackage(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Package возвращает текущий пакет подписки, по возможности из кеша.
func (s *SubscriptionService) Package(ctx context.Context) (*models.SubscriptionPackage, error) {
	const op = "services.subscription.Package"
	var cached models.SubscriptionPackage
	found, err := s.cache.Get(ctx, packageCacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read package cache", sl.Op(op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	pkg, err := s.repo.LatestPackage(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.cache.Set(ctx, packageCacheKey, pkg, packageCacheTTL); err != nil {
		s.log.Warn("failed to cache package", sl.Op(op), sl.Err(err))
	}
	return pkg, nil
}

// CreatePromoCode создаёт промокод и соответствующие купон и промокод у провайдера.
func (s *SubscriptionService) CreatePromoCode(ctx context.Context, in PromoInput) (*models.PromoCode, error) {
	const op = "services.subscription.CreatePromoCode"
	if in.Discount < 0 || in.Discount > 100 {
		return nil, ErrInvalidDiscount
	}
	if in.MaxUses != nil && *in.MaxUses <= 0 {
		return nil, ErrInvalidMaxUses
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))

	_, err := s.repo.GetPromoCodeByCode(ctx, code)
	if err == nil {
		return nil, ErrPromoExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	couponID, err := s.payments.CreateCoupon(ctx, code, in.Discount)
	if err != nil {
		return nil, providerErr(op, err)
	}
	promotionID, err := s.payments.CreatePromotionCode(ctx, couponID, code, in.ExpiresAt, in.MaxUses)
	if err != nil {
		s.dropCoupon(ctx, op, couponID)
		return nil, providerErr(op, err)
	}

	promo, err := s.repo.CreatePromoCode(ctx, models.PromoCode{
		Code:                  code,
		Discount:              in.Discount,
		IsActive:              true,
		ExpiresAt:             in.ExpiresAt,
		MaxUses:               in.MaxUses,
		StripeCouponID:        couponID,
		StripePromotionCodeID: promotionID,
	})
	if err != nil {
		s.dropPromotion(ctx, op, promotionID)
		s.dropCoupon(ctx, op, couponID)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrPromoExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return promo, nil
}

func (s *SubscriptionService) dropCoupon(ctx context.Context, op, id string) {
	if id == "" {
		return
	}
	if err := s.payments.DeleteCoupon(ctx, id); err != nil {
		s.log.Warn("failed to delete coupon", sl.Op(op), slog.String("coupon_id", id), sl.Err(err))
	}
}

func (s *SubscriptionService) dropPromotion(ctx context.Context, op, id string) {
	if id == "" {
		return
	}
	if err := s.payments.DeactivatePromotionCode(ctx, id); err != nil {
		s.log.Warn("failed to deactivate promotion code", sl.Op(op), slog.String("promotion_code_id", id), sl.Err(err))
	}
}

// ListPromoCodes страница промокодов и их общее количество.
func (s *SubscriptionService) ListPromoCodes(ctx context.Context, limit, offset int) ([]models.PromoCode, int, error) {
	const op = "services.subscription.ListPromoCodes"
	items, total, err := s.repo.ListPromoCodes(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return items, total, nil
}

// DeletePromoCode отключает промокод у провайдера и удаляет его.
// Ошибки провайдера не мешают удалению.
func (s *SubscriptionService) DeletePromoCode(ctx context.Context, id string) error {
	const op = "services.subscription.DeletePromoCode"
	promo, err := s.repo.GetPromoCodeByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPromoNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.dropPromotion(ctx, op, promo.StripePromotionCodeID)
	s.dropCoupon(ctx, op, promo.StripeCouponID)

	err = s.repo.DeletePromoCode(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPromoNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
