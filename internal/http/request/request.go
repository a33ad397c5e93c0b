// Package request разбирает тела запросов: JSON с валидацией и multipart-формы с файлами.
package request

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
)

// Bind декодирует JSON-тело в dst и валидирует его.
// При ошибке пишет ответ 400 и возвращает false.
func Bind(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid request body"))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		log.Error("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.JSON(w, r, http.StatusBadRequest, response.ValidationError(verrs))
		} else {
			response.JSON(w, r, http.StatusBadRequest, response.Error("invalid request body"))
		}
		return false
	}
	return true
}

// ValidID сообщает, является ли id корректным UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ParseMultipart разбирает multipart-форму с ограничением размера.
func ParseMultipart(w http.ResponseWriter, r *http.Request, log *slog.Logger, maxSize int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		log.Error("failed to parse multipart form", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid multipart form"))
		return false
	}
	return true
}

// FormFile возвращает загруженный файл поля field, если он есть.
// Вызывающий закрывает файл через возвращённую функцию.
func FormFile(r *http.Request, field string) (*filestore.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return upload(file, header), func() { _ = file.Close() }, nil
}

func upload(file multipart.File, header *multipart.FileHeader) *filestore.Upload {
	return &filestore.Upload{Reader: file, Filename: header.Filename}
}

// OptionalValue возвращает значение поля формы или nil, если поле не передано или пустое.
func OptionalValue(r *http.Request, field string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	if v == "" {
		return nil
	}
	return &v
}
