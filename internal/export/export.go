// Package export формирует XLSX-выгрузки пользователей и транзакций.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// ContentType MIME-тип XLSX-файла.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	userHeader = []any{"ID", "Name", "Email", "Phone", "Gender", "Date of birth", "Category",
		"Subscriber", "Paid", "Created at"}
	transactionHeader = []any{"ID", "User", "Email", "Amount", "Original amount", "Discount",
		"Currency", "Status", "Stripe session", "Created at"}
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeSheet(w io.Writer, sheetName string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// Users пишет выгрузку пользователей в w.
func Users(w io.Writer, users []models.User) error {
	const op = "export.Users"
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{
			u.ID, u.Name, u.Email, deref(u.Phone), deref(u.Gender), deref(u.DateOfBirth),
			deref(u.Category), u.IsSubscriber, u.RealSubscriber, u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeSheet(w, "Users", userHeader, rows); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Transactions пишет выгрузку транзакций в w.
func Transactions(w io.Writer, txs []models.TransactionExportRow) error {
	const op = "export.Transactions"
	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []any{
			t.ID, t.UserName, t.UserEmail, t.Amount, t.OriginalAmount, t.DiscountAmount,
			t.Currency, t.Status, t.StripeSessionID, t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeSheet(w, "Transactions", transactionHeader, rows); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
