// Package models содержит доменные сущности сервиса: пользователей, прогнозы,
// пакеты подписки, промокоды, транзакции и настройки.
package models

import "time"

const (
	// RoleUser обычный пользователь мобильного приложения.
	RoleUser = "user"
	// RoleAdmin администратор панели управления.
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Type           string     `json:"type"`
	Phone          *string    `json:"phone"`
	Gender         *string    `json:"gender"`
	DateOfBirth    *string    `json:"date_of_birth"`
	Category       *string    `json:"category"`
	Avatar         *string    `json:"avatar_url"`
	IsSubscriber   bool       `json:"isSubscriber"`
	RealSubscriber bool       `json:"realSubscriber"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// UserUpdate частичное обновление профиля, nil-поля не меняются.
type UserUpdate struct {
	Name        *string
	Gender      *string
	DateOfBirth *string
	Category    *string
	Avatar      *string
}

// Empty сообщает, что обновлять нечего.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Gender == nil && u.DateOfBirth == nil && u.Category == nil && u.Avatar == nil
}

// UserEarning сумма оплаченных транзакций пользователя.
type UserEarning struct {
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Avatar   *string `json:"avatar_url"`
	Earnings float64 `json:"totalEarnings"`
}

// UserFilter параметры выборки пользователей для админ-панели.
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}
