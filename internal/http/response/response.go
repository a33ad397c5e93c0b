// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/pagination"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Success признак успешного запроса.
// Поле Message человеко-читаемое сообщение.
// Поле Data данные ответа (опционально).
// Поле Pagination метаданные страницы для списков (опционально).
type Response struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Data       any              `json:"data,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"invalid request body"`
}

// OK возвращает успешный Response с сообщением и данными.
func OK(msg string, data any) Response {
	return Response{
		Success: true,
		Message: msg,
		Data:    data,
	}
}

// Page возвращает успешный Response для постраничной выдачи.
func Page(msg string, data any, meta pagination.Meta) Response {
	return Response{
		Success:    true,
		Message:    msg,
		Data:       data,
		Pagination: &meta,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{Message: msg}
}

// ErrorWithData возвращает ошибку с подсказкой в data, например списком допустимых значений.
func ErrorWithData(msg string, data any) Response {
	return Response{Message: msg, Data: data}
}

// JSON пишет ответ с указанным статусом.
func JSON(w http.ResponseWriter, r *http.Request, status int, resp any) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// ValidationError формирует Response на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "gte", "lte", "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is out of range", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Message: strings.Join(errsMsgs, ", "),
	}
}
