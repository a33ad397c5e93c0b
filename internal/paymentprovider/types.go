package paymentprovider

// Типы событий checkout-сессии, которые разбирает ParseEvent.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventCheckoutSessionExpired   = "checkout.session.expired"
)

// Ключи метаданных checkout-сессии.
const (
	MetaUserID                = "userId"
	MetaSubscriptionPackageID = "subscriptionPackageId"
	MetaPromoCodeID           = "promoCodeId"
	MetaOriginalAmount        = "originalAmount"
	MetaDiscountAmount        = "discountAmount"
	MetaFinalAmount           = "finalAmount"
)

// CheckoutParams параметры создания checkout-сессии.
type CheckoutParams struct {
	UserID        string
	CustomerEmail string
	ProductName   string
	Amount        float64
	Currency      string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession созданная checkout-сессия.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event проверенное событие вебхука.
type Event struct {
	Type    string
	Session *CompletedSession
}

// CompletedSession данные оплаченной checkout-сессии.
type CompletedSession struct {
	ID                string
	Mode              string
	PaymentIntentID   string
	ClientReferenceID string
	Metadata          map[string]string
}

// UserID возвращает пользователя из метаданных или client_reference_id.
func (s *CompletedSession) UserID() string {
	if id := s.Metadata[MetaUserID]; id != "" {
		return id
	}
	return s.ClientReferenceID
}
