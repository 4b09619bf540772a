package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"librag/internal/domain"
)

var (
	txLimit    int
	exportPath string
)

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "Inspect and export the borrow/return ledger",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent transactions",
	Args:  cobra.NoArgs,
	RunE:  runTransactionsList,
}

var transactionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole ledger as CSV",
	Long: `Export the whole ledger as CSV.

Examples:
  librag transactions export > ledger.csv
  librag transactions export --file ledger.csv`,
	Args: cobra.NoArgs,
	RunE: runTransactionsExport,
}

func init() {
	transactionsListCmd.Flags().IntVarP(&txLimit, "limit", "l", 20, "Number of most recent transactions to show (0 for all)")
	transactionsExportCmd.Flags().StringVarP(&exportPath, "file", "f", "", "Write to file instead of stdout")
	transactionsCmd.AddCommand(transactionsListCmd, transactionsExportCmd)
	rootCmd.AddCommand(transactionsCmd)
}

func runTransactionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	txs, err := newLibrary(st).Transactions(context.Background(), txLimit)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		if txs == nil {
			txs = []domain.Transaction{}
		}
		return printJSON(txs)
	}
	if len(txs) == 0 {
		fmt.Println("No transactions available.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tBOOK\tACTION\tUSER\tCOLLEGE\tID/EMAIL\tPHONE\tTIME\n")
	for _, t := range txs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.BookID, t.Action, t.User.Name, t.User.College, t.User.IDEmail, t.User.Phone,
			t.Timestamp.Local().Format(time.DateTime))
	}
	w.Flush()
	return nil
}

func runTransactionsExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := newLibrary(st).ExportTransactionsCSV(context.Background(), out); err != nil {
		return err
	}
	if exportPath != "" {
		fmt.Fprintf(os.Stderr, "Exported ledger to %s\n", exportPath)
	}
	return nil
}
