package library

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"transaction_id", "book_id", "action", "user_name", "user_college",
	"user_id_email", "user_phone", "timestamp",
}

// ExportTransactionsCSV writes the whole ledger as CSV with a header row.
func (m *Manager) ExportTransactionsCSV(ctx context.Context, w io.Writer) error {
	txs, err := m.store.ListTransactions(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range txs {
		rec := []string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.BookID, 10),
			string(t.Action),
			t.User.Name,
			t.User.College,
			t.User.IDEmail,
			t.User.Phone,
			t.Timestamp.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
