package models

import "time"

// Статусы транзакций.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction попытка оплаты пакета подписки.
type Transaction struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	SubscriptionPackageID string    `json:"subscriptionPackageId"`
	PromoCodeID           *string   `json:"promoCodeId"`
	Amount                float64   `json:"amount"`
	OriginalAmount        float64   `json:"originalAmount"`
	DiscountAmount        float64   `json:"discountAmount"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	StripeSessionID       string    `json:"stripeSessionId"`
	StripePaymentIntentID *string   `json:"stripePaymentIntentId"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// CheckoutResult ответ на создание checkout-сессии.
type CheckoutResult struct {
	SessionID      string  `json:"sessionId"`
	URL            string  `json:"url"`
	TransactionID  string  `json:"transactionId"`
	Amount         float64 `json:"amount"`
	OriginalAmount float64 `json:"originalAmount"`
	DiscountAmount float64 `json:"discountAmount"`
}

// CompletedPayment данные подтверждённой оплаты из вебхука.
type CompletedPayment struct {
	SessionID       string
	PaymentIntentID string
	UserID          string
	PromoCodeID     string
}

// TransactionExportRow строка выгрузки транзакций.
type TransactionExportRow struct {
	Transaction
	UserName  string
	UserEmail string
}
