package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contextiq/internal/chunker"
	"contextiq/internal/config"
	"contextiq/internal/helper"
	"contextiq/internal/parser"
)

func NewParseCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Print the text extracted from a document",
		Long:  `Extract plain text from a document without embedding it. With --chunks the chunks are printed as JSON.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withChunks, _ := cmd.Flags().GetBool("chunks")

			doc, err := parser.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			text, err := parser.Extract(doc)
			if err != nil {
				return err
			}

			if !withChunks {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}
			c := cfg().Chunker
			helper.PrettyPrint(cmd.OutOrStdout(), chunker.New(c.ChunkSize, c.ChunkOverlap).Chunk(text))
			return nil
		},
	}

	cmd.Flags().Bool("chunks", false, "Print chunks as JSON instead of the raw text")
	return cmd
}
