package models

import "time"

// Категории прогнозов.
const (
	CategoryCasino = "Casino"
	CategorySports = "Sports"
	CategoryStocks = "Stocks"
	CategoryCrypto = "Crypto"
)

// Статусы прогнозов.
const (
	StatusPending = "pending"
	StatusCancel  = "cansel"
	StatusWin     = "win"
	StatusLose    = "lose"
)

// Categories допустимые категории в порядке отображения.
var Categories = []string{CategoryCasino, CategorySports, CategoryStocks, CategoryCrypto}

// PredictionStatuses допустимые статусы прогноза.
var PredictionStatuses = []string{StatusPending, StatusCancel, StatusWin, StatusLose}

// ValidCategory проверяет, что категория входит в Categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidPredictionStatus проверяет статус прогноза.
func ValidPredictionStatus(s string) bool {
	for _, v := range PredictionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Prediction прогноз, публикуемый администратором.
type Prediction struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PredictionUpdate частичное обновление прогноза.
type PredictionUpdate struct {
	Category    *string
	Description *string
	Status      *string
	Image       *string
}

// PredictionFilter фильтр для административного списка.
type PredictionFilter struct {
	Category string
	Status   string
	Search   string
	Limit    int
	Offset   int
}

// FeedQuery запрос ленты прогнозов для пользователей.
type FeedQuery struct {
	Category string
	Cursor   string
	Limit    int
}

// FeedItem прогноз в пользовательской ленте с процентом побед по категории.
type FeedItem struct {
	Prediction
	WinRate int `json:"winRate"`
}

// CategoryStats агрегаты по одной категории.
type CategoryStats struct {
	Category string `json:"category"`
	Win      int    `json:"-"`
	Lose     int    `json:"-"`
	Active   int    `json:"active"`
	WinRate  int    `json:"winRate"`
}
