package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contextiq/internal/config"
	"contextiq/internal/parser"
	"contextiq/internal/session"
)

func NewIndexCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Embed a document and save its index",
		Long:  `Parse, chunk and embed a document, then write the vector index and its chunk file so later questions skip embedding.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = c.Index.Path
			}

			s, closeFn, err := newSession(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer closeFn()

			doc, err := parser.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			n, err := s.Process(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if err := s.SaveIndex(out); err != nil {
				return fmt.Errorf("save index: %w", err)
			}

			log.Info().Str("index", out).Str("chunks", session.ChunksPath(out)).Msg("Saved index")
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Index file path (defaults to index.path from config)")
	return cmd
}
