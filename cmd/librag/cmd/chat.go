package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"librag/internal/logging"
	"librag/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat about the library",
	Long: `Open a terminal chat. Enter asks, tab toggles the model's reasoning,
ctrl+t toggles the retrieved context, up/down page through past answers.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	// The TUI owns the terminal; keep log records off it.
	logger = logging.Discard()
	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	_, err = tea.NewProgram(tui.New(a.rag, 0), tea.WithAltScreen()).Run()
	return err
}
