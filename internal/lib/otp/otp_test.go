package otp

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Range(t *testing.T) {
	for range 500 {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, 4)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	exp := ExpiresAt(now, 5*time.Minute).UnixMilli()

	assert.False(t, Expired(exp, now))
	assert.False(t, Expired(exp, now.Add(5*time.Minute)))
	assert.True(t, Expired(exp, now.Add(5*time.Minute+time.Millisecond)))
}
