package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"librag/internal/domain"
)

var (
	userName    string
	userCollege string
	userIDEmail string
	userPhone   string
)

var borrowCmd = &cobra.Command{
	Use:   "borrow [book-id]",
	Short: "Borrow one copy of a book",
	Long: `Borrow one copy of a book and record the transaction.

A book with no copies left is refused and nothing is recorded.

Examples:
  librag borrow 2 --name "Alice" --college "MIT" --id-email alice@mit.edu --phone 555-0100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCirculation(args[0], domain.ActionBorrow)
	},
}

var returnCmd = &cobra.Command{
	Use:   "return [book-id]",
	Short: "Return one copy of a book",
	Long: `Return one copy of a book and record the transaction.

Examples:
  librag return 2 --name "Alice"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCirculation(args[0], domain.ActionReturn)
	},
}

func init() {
	for _, c := range []*cobra.Command{borrowCmd, returnCmd} {
		c.Flags().StringVar(&userName, "name", "", "Borrower name")
		c.Flags().StringVar(&userCollege, "college", "", "Borrower college")
		c.Flags().StringVar(&userIDEmail, "id-email", "", "Borrower ID or email")
		c.Flags().StringVar(&userPhone, "phone", "", "Borrower phone")
		rootCmd.AddCommand(c)
	}
}

func runCirculation(arg string, action domain.Action) error {
	id, err := parseBookID(arg)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	lib := newLibrary(st)
	user := domain.User{Name: userName, College: userCollege, IDEmail: userIDEmail, Phone: userPhone}
	op := lib.Borrow
	if action == domain.ActionReturn {
		op = lib.Return
	}
	tx, err := op(context.Background(), id, user)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(tx)
	}
	if action == domain.ActionBorrow {
		fmt.Printf("Book borrowed successfully (transaction %d).\n", tx.ID)
	} else {
		fmt.Printf("Book returned successfully (transaction %d).\n", tx.ID)
	}
	return nil
}
