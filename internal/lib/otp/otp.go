// Package otp генерирует одноразовые коды подтверждения.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	minCode = 1000
	maxCode = 9999
)

// Generate возвращает четырёхзначный код в диапазоне 1000–9999.
func Generate() (string, error) {
	const op = "otp.Generate"
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("%d", n.Int64()+minCode), nil
}

// ExpiresAt возвращает момент истечения кода, выданного в now.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// Expired сообщает, истёк ли код, срок которого хранится как unix-миллисекунды.
func Expired(expirationMillis int64, now time.Time) bool {
	return now.UnixMilli() > expirationMillis
}
