package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contextiq/internal/config"
	"contextiq/internal/tui"
)

func NewChatCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <file>",
		Short: "Chat with a document in the terminal",
		Long: `Open an interactive session on a document. Keys: enter asks, tab/shift+tab change
the number of context chunks, ctrl+l clears history, ctrl+r resets, ctrl+o re-uploads.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			watch, _ := cmd.Flags().GetBool("watch")
			logPath, _ := cmd.Flags().GetString("log-file")

			logFile, err := openLogFile(logPath)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			logOutput(logFile)

			s, closeFn, err := newSession(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			model := tui.New(ctx, s, tui.Options{
				Path:        args[0],
				TopK:        c.RAG.TopK,
				MaxTopK:     c.RAG.MaxTopK,
				SourceWidth: c.RAG.SourceWidth,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

			if watch {
				w, err := tui.NewFileWatcher(args[0])
				if err != nil {
					return err
				}
				go func() {
					if err := w.Run(ctx, 500*time.Millisecond, func() { p.Send(tui.FileChangedMsg{}) }); err != nil {
						log.Error().Err(err).Msg("Watcher stopped")
					}
				}()
			}

			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().Bool("watch", false, "Re-process the document when the file changes")
	cmd.Flags().String("log-file", "contextiq.log", "Where logs go while the TUI is open")
	return cmd
}
