package models

import "time"

// Setting произвольная настройка приложения ключ-значение.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
