package service

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"librag/internal/domain"
	"librag/internal/index"
)

func renderBooks(books []domain.Book) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK ID\tTITLE\tAUTHOR\tDESCRIPTION\tTAGS\tCOPIES")
	for _, bk := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			bk.ID, cell(bk.Title), cell(bk.Author), cell(bk.Description), cell(bk.Tags), bk.Copies)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func renderTransactions(txs []domain.Transaction) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION ID\tBOOK ID\tACTION\tUSER\tCOLLEGE\tID/EMAIL\tPHONE\tTIMESTAMP")
	for _, t := range txs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.BookID, t.Action, cell(t.User.Name), cell(t.User.College),
			cell(t.User.IDEmail), cell(t.User.Phone), t.Timestamp.Format(index.TimestampLayout))
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// cell keeps free text on one row of the table.
func cell(s string) string {
	s = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
	if s == "" {
		return "-"
	}
	return s
}
