package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"librag/internal/domain"
)

var (
	bookTitle       string
	bookAuthor      string
	bookDescription string
	bookTags        string
	bookCopies      int
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List, show, add and edit catalog books",
	Long: `Manage the book catalog.

Examples:
  librag books list
  librag books show 2
  librag books add --title "Dune" --author "Frank Herbert" --copies 2
  librag books edit 2 --copies 5`,
}

var booksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every book",
	Args:  cobra.NoArgs,
	RunE:  runBooksList,
}

var booksShowCmd = &cobra.Command{
	Use:   "show [book-id]",
	Short: "Show one book",
	Args:  cobra.ExactArgs(1),
	RunE:  runBooksShow,
}

var booksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a book to the catalog",
	Args:  cobra.NoArgs,
	RunE:  runBooksAdd,
}

var booksEditCmd = &cobra.Command{
	Use:   "edit [book-id]",
	Short: "Overwrite selected fields of a book",
	Long: `Overwrite selected fields of a book. Only the flags given are changed.

Examples:
  librag books edit 3 --tags "drama, classics"
  librag books edit 3 --title "To Kill a Mockingbird" --copies 4`,
	Args: cobra.ExactArgs(1),
	RunE: runBooksEdit,
}

func init() {
	for _, c := range []*cobra.Command{booksAddCmd, booksEditCmd} {
		c.Flags().StringVar(&bookTitle, "title", "", "Book title")
		c.Flags().StringVar(&bookAuthor, "author", "", "Book author")
		c.Flags().StringVar(&bookDescription, "description", "", "Short description")
		c.Flags().StringVar(&bookTags, "tags", "", "Comma-separated tags")
		c.Flags().IntVar(&bookCopies, "copies", 1, "Copies available")
	}
	_ = booksAddCmd.MarkFlagRequired("title")

	booksCmd.AddCommand(booksListCmd, booksShowCmd, booksAddCmd, booksEditCmd)
	rootCmd.AddCommand(booksCmd)
}

func parseBookID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book id %q", s)
	}
	return id, nil
}

func runBooksList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	books, err := newLibrary(st).Books(ctx)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		if books == nil {
			books = []domain.Book{}
		}
		return printJSON(books)
	}
	if len(books) == 0 {
		fmt.Println("No books in the catalog. Run 'librag seed' to load samples.")
		return nil
	}
	printBooks(books)
	return nil
}

func runBooksShow(cmd *cobra.Command, args []string) error {
	id, err := parseBookID(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := newLibrary(st).Book(context.Background(), id)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(b)
	}
	fmt.Printf("Book ID:     %d\n", b.ID)
	fmt.Printf("Title:       %s\n", b.Title)
	fmt.Printf("Author:      %s\n", b.Author)
	fmt.Printf("Description: %s\n", b.Description)
	fmt.Printf("Tags:        %s\n", b.Tags)
	fmt.Printf("Copies:      %d\n", b.Copies)
	return nil
}

func runBooksAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := newLibrary(st).AddBook(context.Background(), domain.Book{
		Title:       bookTitle,
		Author:      bookAuthor,
		Description: bookDescription,
		Tags:        bookTags,
		Copies:      bookCopies,
	})
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(b)
	}
	fmt.Printf("Book added with ID %d\n", b.ID)
	return nil
}

func runBooksEdit(cmd *cobra.Command, args []string) error {
	id, err := parseBookID(args[0])
	if err != nil {
		return err
	}
	var patch domain.BookPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		patch.Title = &bookTitle
	}
	if flags.Changed("author") {
		patch.Author = &bookAuthor
	}
	if flags.Changed("description") {
		patch.Description = &bookDescription
	}
	if flags.Changed("tags") {
		patch.Tags = &bookTags
	}
	if flags.Changed("copies") {
		patch.Copies = &bookCopies
	}
	if patch.Empty() {
		return fmt.Errorf("nothing to change: pass at least one of --title, --author, --description, --tags, --copies")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := newLibrary(st).EditBook(context.Background(), id, patch)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(b)
	}
	fmt.Println("Book updated successfully.")
	printBooks([]domain.Book{b})
	return nil
}

func printBooks(books []domain.Book) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tAUTHOR\tCOPIES\tTAGS\n")
	for _, b := range books {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.Copies, b.Tags)
	}
	w.Flush()
}
