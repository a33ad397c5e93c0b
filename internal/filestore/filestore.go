// Package filestore хранит загруженные изображения на локальном диске
// под случайными именами и строит для них публичные URL.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType файл не является изображением.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge файл больше допустимого размера.
	ErrTooLarge = errors.New("file too large")
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store файловое хранилище.
type Store struct {
	dir     string
	baseURL string
	maxSize int64
	client  *http.Client
}

// New создаёт каталог dir, если его нет. maxSize ограничивает размер
// сохраняемого файла, 0 снимает ограничение.
func New(dir, baseURL string, maxSize int64) (*Store, error) {
	const op = "filestore.New"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Dir каталог с файлами.
func (s *Store) Dir() string {
	return s.dir
}

// Save сохраняет содержимое r под новым именем с расширением из originalName.
// Возвращает имя сохранённого файла.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	const op = "filestore.Save"
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%s: %w: %q", op, ErrUnsupportedType, ext)
	}
	return s.write(op, r, ext)
}

// Download скачивает изображение по URL и сохраняет его как <uuid>.jpg.
// Ответ должен иметь Content-Type image/*.
func (s *Store) Download(ctx context.Context, url string) (string, error) {
	const op = "filestore.Download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return "", fmt.Errorf("%s: %w: %q", op, ErrUnsupportedType, ct)
	}
	if s.maxSize > 0 && resp.ContentLength > s.maxSize {
		return "", fmt.Errorf("%s: %w", op, ErrTooLarge)
	}
	return s.write(op, resp.Body, ".jpg")
}

func (s *Store) write(op string, r io.Reader, ext string) (string, error) {
	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if s.maxSize > 0 {
		// лишний байт показывает, что источник длиннее лимита
		r = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, r)
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return name, nil
}

// Remove удаляет файл. Отсутствие файла ошибкой не считается.
func (s *Store) Remove(name string) error {
	const op = "filestore.Remove"
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// URL возвращает публичную ссылку на файл. Абсолютные ссылки возвращаются без изменений.
func (s *Store) URL(name string) string {
	if name == "" || strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name
	}
	return s.baseURL + "/" + name
}

// Upload загружаемый файл из multipart-формы.
type Upload struct {
	Reader   io.Reader
	Filename string
}
