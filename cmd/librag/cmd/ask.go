package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askTopK        int
	askReasoning   bool
	askContext     bool
	askContextOnly bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the library",
	Long: `Ask a free-text question. Matching books and transactions are retrieved,
insights are derived from the whole catalog and ledger, and a language model
writes the answer.

Examples:
  librag ask "Is 1984 available?"
  librag ask "Who borrowed books this week?" --reasoning
  librag ask "dystopian novels" --context-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Matches to retrieve from each index (defaults to retrieval.top_k)")
	askCmd.Flags().BoolVar(&askReasoning, "reasoning", false, "Also print the model's reasoning")
	askCmd.Flags().BoolVar(&askContext, "context", false, "Also print the retrieved context")
	askCmd.Flags().BoolVar(&askContextOnly, "context-only", false, "Print the retrieved context and skip the model")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("question is empty")
	}

	a, err := buildApp(ctx, !askContextOnly)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	contextText, err := a.rag.Retrieve(ctx, query, askTopK)
	if err != nil {
		return err
	}
	if askContextOnly {
		if outputFormat == "json" {
			return printJSON(map[string]string{"query": query, "context": contextText})
		}
		fmt.Println(contextText)
		return nil
	}

	ans, err := a.rag.Generate(ctx, query, contextText)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(map[string]string{
			"query":     query,
			"context":   contextText,
			"reasoning": ans.Reasoning,
			"answer":    ans.Answer,
		})
	}
	if askContext {
		fmt.Printf("--- Context ---\n%s\n\n", contextText)
	}
	if askReasoning {
		fmt.Printf("--- Reasoning ---\n%s\n\n", ans.Reasoning)
	}
	fmt.Println(ans.Answer)
	return nil
}
