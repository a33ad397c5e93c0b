package models

import "time"

// SubscriptionPackage единственный продаваемый пакет подписки.
type SubscriptionPackage struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Title           string    `json:"title"`
	Description     []string  `json:"description"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Duration        string    `json:"duration"`
	IsActive        bool      `json:"isActive"`
	StripeProductID string    `json:"stripeProductId"`
	StripePriceID   string    `json:"stripePriceId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PackageInput данные создания или частичного обновления пакета.
type PackageInput struct {
	Name        *string  `json:"name"`
	Title       *string  `json:"title"`
	Description []string `json:"description"`
	Amount      *float64 `json:"amount"`
	Currency    *string  `json:"currency"`
	Duration    *string  `json:"duration"`
	IsActive    *bool    `json:"isActive"`
}

// PromoCode промокод со скидкой в процентах.
type PromoCode struct {
	ID                    string     `json:"id"`
	Code                  string     `json:"code"`
	Discount              float64    `json:"discount"`
	IsActive              bool       `json:"isActive"`
	ExpiresAt             *time.Time `json:"expiresAt"`
	MaxUses               *int       `json:"maxUses"`
	UsedCount             int        `json:"usedCount"`
	StripeCouponID        string     `json:"stripeCouponId"`
	StripePromotionCodeID string     `json:"stripePromotionCodeId"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// Exhausted сообщает, что лимит использований исчерпан.
func (p PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.UsedCount >= *p.MaxUses
}

// Expired сообщает, что срок действия промокода истёк к моменту now.
func (p PromoCode) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}
