// Package paymentprovider оборачивает Stripe: каталог продуктов, купоны,
// checkout-сессии и проверку подписи вебхуков.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrInvalidSignature подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Client клиент Stripe API.
type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient создаёт клиент Stripe. Если backends равен nil, используются стандартные адреса API.
func NewClient(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// toCents переводит сумму в минимальные единицы валюты.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// IsNotFound сообщает, что объект Stripe не существует.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

// CreateProduct создаёт продукт и возвращает его идентификатор.
func (c *Client) CreateProduct(ctx context.Context, name, description string) (string, error) {
	const op = "paymentprovider.CreateProduct"
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx

	product, err := c.api.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return product.ID, nil
}

// ProductExists проверяет, что продукт существует и не удалён.
func (c *Client) ProductExists(ctx context.Context, id string) (bool, error) {
	const op = "paymentprovider.ProductExists"
	if id == "" {
		return false, nil
	}
	params := &stripe.ProductParams{}
	params.Context = ctx

	product, err := c.api.Products.Get(id, params)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return !product.Deleted, nil
}

// UpdateProduct обновляет название и описание продукта.
func (c *Client) UpdateProduct(ctx context.Context, id, name, description string) error {
	const op = "paymentprovider.UpdateProduct"
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx

	if _, err := c.api.Products.Update(id, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreatePrice создаёт разовую цену продукта.
func (c *Client) CreatePrice(ctx context.Context, productID string, amount float64, currency string) (string, error) {
	const op = "paymentprovider.CreatePrice"
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(toCents(amount)),
		Currency:   stripe.String(currency),
	}
	params.Context = ctx

	price, err := c.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return price.ID, nil
}

// CreateCoupon создаёт бессрочный процентный купон.
func (c *Client) CreateCoupon(ctx context.Context, name string, percentOff float64) (string, error) {
	const op = "paymentprovider.CreateCoupon"
	params := &stripe.CouponParams{
		Name:       stripe.String(name),
		PercentOff: stripe.Float64(percentOff),
		Duration:   stripe.String(string(stripe.CouponDurationForever)),
	}
	params.Context = ctx

	coupon, err := c.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return coupon.ID, nil
}

// DeleteCoupon удаляет купон.
func (c *Client) DeleteCoupon(ctx context.Context, id string) error {
	const op = "paymentprovider.DeleteCoupon"
	params := &stripe.CouponParams{}
	params.Context = ctx

	if _, err := c.api.Coupons.Del(id, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreatePromotionCode создаёт промокод Stripe для купона.
func (c *Client) CreatePromotionCode(ctx context.Context, couponID, code string, expiresAt *time.Time, maxUses *int) (string, error) {
	const op = "paymentprovider.CreatePromotionCode"
	params := &stripe.PromotionCodeParams{
		Coupon: stripe.String(couponID),
		Code:   stripe.String(code),
	}
	if expiresAt != nil {
		params.ExpiresAt = stripe.Int64(expiresAt.Unix())
	}
	if maxUses != nil {
		params.MaxRedemptions = stripe.Int64(int64(*maxUses))
	}
	params.Context = ctx

	promo, err := c.api.PromotionCodes.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return promo.ID, nil
}

// DeactivatePromotionCode выключает промокод Stripe.
func (c *Client) DeactivatePromotionCode(ctx context.Context, id string) error {
	const op = "paymentprovider.DeactivatePromotionCode"
	params := &stripe.PromotionCodeParams{
		Active: stripe.Bool(false),
	}
	params.Context = ctx

	if _, err := c.api.PromotionCodes.Update(id, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateCheckoutSession создаёт платёжную checkout-сессию на итоговую сумму.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutParams) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(in.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
					UnitAmount: stripe.Int64(toCents(in.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// ParseEvent проверяет подпись вебхука и разбирает событие.
func (c *Client) ParseEvent(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ParseEvent"
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	result := &Event{Type: string(event.Type)}
	if (result.Type != EventCheckoutSessionCompleted && result.Type != EventCheckoutSessionExpired) || event.Data == nil {
		return result, nil
	}

	var session stripe.CheckoutSession
	if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.Session = &CompletedSession{
		ID:                session.ID,
		Mode:              string(session.Mode),
		ClientReferenceID: session.ClientReferenceID,
		Metadata:          session.Metadata,
	}
	if session.PaymentIntent != nil {
		result.Session.PaymentIntentID = session.PaymentIntent.ID
	}
	return result, nil
}
