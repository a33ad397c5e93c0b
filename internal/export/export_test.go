package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

func TestUsers(t *testing.T) {
	phone := "+100"
	var buf bytes.Buffer
	err := Users(&buf, []models.User{
		{ID: "u1", Name: "Alice", Email: "a@example.com", Phone: &phone, IsSubscriber: true, CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "u2", Name: "Bob", Email: "b@example.com"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Email", rows[0][2])
	assert.Equal(t, "Alice", rows[1][1])
	assert.Equal(t, "+100", rows[1][3])
	assert.Equal(t, "2024-05-01T00:00:00Z", rows[1][9])
	assert.Equal(t, "Bob", rows[2][1])
}

func TestTransactions(t *testing.T) {
	var buf bytes.Buffer
	tx := models.TransactionExportRow{UserName: "Alice", UserEmail: "a@example.com"}
	tx.ID = "t1"
	tx.Amount = 23.99
	tx.Status = models.TransactionCompleted
	require.NoError(t, Transactions(&buf, []models.TransactionExportRow{tx}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[1][0])
	assert.Equal(t, "23.99", rows[1][3])
	assert.Equal(t, "completed", rows[1][7])
}

func TestTransactions_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Transactions(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
