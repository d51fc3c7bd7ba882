package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contextiq/internal/config"
	"contextiq/internal/helper"
	"contextiq/internal/models"
	"contextiq/internal/parser"
	"contextiq/internal/session"
)

func NewAskCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [file] <question>",
		Short: "Answer one question about a document",
		Long: `Answer a single question from a document. Pass the document to process it now,
or --index to reuse an index written by the index command.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			k, _ := cmd.Flags().GetInt("k")
			indexPath, _ := cmd.Flags().GetString("index")
			asJSON, _ := cmd.Flags().GetBool("json")

			if indexPath == "" && len(args) != 2 {
				return fmt.Errorf("need a document and a question, or --index and a question")
			}
			if indexPath != "" && len(args) != 1 {
				return fmt.Errorf("with --index pass only the question")
			}
			question := args[len(args)-1]

			s, closeFn, err := newSession(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer closeFn()

			if indexPath != "" {
				chunks, err := session.ReadChunks(session.ChunksPath(indexPath))
				if err != nil {
					return fmt.Errorf("read chunks: %w", err)
				}
				if err := s.LoadIndex(indexPath, chunks); err != nil {
					return err
				}
			} else {
				doc, err := parser.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				if _, err := s.Process(cmd.Context(), doc); err != nil {
					return err
				}
			}

			turn, err := s.Ask(cmd.Context(), question, k)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(turn)
			}
			printTurn(cmd, turn, c.RAG.SourceWidth)
			return nil
		},
	}

	cmd.Flags().IntP("k", "k", 0, "Number of context chunks (defaults to rag.top_k)")
	cmd.Flags().String("index", "", "Saved index to load instead of processing a document")
	cmd.Flags().Bool("json", false, "Output the answered turn as JSON")
	return cmd
}

func printTurn(cmd *cobra.Command, turn models.Turn, width int) {
	out := cmd.OutOrStdout()

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", turn.Question)

	log.Info().Int("sources", turn.NumSources).Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for i, src := range turn.Sources {
		fmt.Fprintf(out, "[%d] %s\n\n", i+1, helper.Truncate(src, width))
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", turn.Answer)
}
