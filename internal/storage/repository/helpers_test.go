package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/predictions-backend/internal/migrations"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// setupStorage поднимает PostgreSQL в контейнере и применяет миграции.
func setupStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, path))

	t.Cleanup(func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return storage
}

// testDataFactory создаёт тестовые записи напрямую через хранилище.
type testDataFactory struct {
	storage *Storage
}

func newTestDataFactory(storage *Storage) *testDataFactory {
	return &testDataFactory{storage: storage}
}

func (f *testDataFactory) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.storage.CreateUser(context.Background(), models.User{
		Name:         name,
		Email:        name + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: "hash",
		Type:         models.RoleUser,
	})
	require.NoError(t, err)
	return u
}

func (f *testDataFactory) prediction(t *testing.T, category, status string, createdAt time.Time) *models.Prediction {
	t.Helper()
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO predictions (category, status, created_at)
		VALUES ($1, $2, $3) RETURNING id`, category, status, createdAt).Scan(&id)
	require.NoError(t, err)
	p, err := f.storage.GetPrediction(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *testDataFactory) pkg(t *testing.T) *models.SubscriptionPackage {
	t.Helper()
	p, err := f.storage.CreatePackage(context.Background(), models.SubscriptionPackage{
		Name:            "premium",
		Title:           "Premium",
		Description:     []string{"All categories", "Daily picks"},
		Amount:          29.99,
		Currency:        "usd",
		Duration:        "month",
		IsActive:        true,
		StripeProductID: "prod_1",
		StripePriceID:   "price_1",
	})
	require.NoError(t, err)
	return p
}

func (f *testDataFactory) promo(t *testing.T, code string, maxUses *int) *models.PromoCode {
	t.Helper()
	p, err := f.storage.CreatePromoCode(context.Background(), models.PromoCode{
		Code:                  code,
		Discount:              20,
		IsActive:              true,
		MaxUses:               maxUses,
		StripeCouponID:        "coupon_" + code,
		StripePromotionCodeID: "promo_" + code,
	})
	require.NoError(t, err)
	return p
}

func (f *testDataFactory) transaction(t *testing.T, userID, packageID string, promoID *string, amount float64, sessionID string) *models.Transaction {
	t.Helper()
	tr, err := f.storage.CreateTransaction(context.Background(), models.Transaction{
		UserID:                userID,
		SubscriptionPackageID: packageID,
		PromoCodeID:           promoID,
		Amount:                amount,
		OriginalAmount:        amount,
		Currency:              "usd",
		StripeSessionID:       sessionID,
	})
	require.NoError(t, err)
	return tr
}
