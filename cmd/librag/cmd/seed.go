package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample catalog into an empty database",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := newLibrary(st).Seed(context.Background())
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Catalog already has books; nothing seeded.")
		return nil
	}
	fmt.Printf("Sample data created successfully (%d books).\n", n)
	return nil
}
