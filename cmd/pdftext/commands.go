package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthshield-ai/internal/pkg/pdfextract"
	"healthshield-ai/internal/rag"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdftext",
		Short:         "Inspect text extraction and chunking for PDF files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newExtractCmd(), newChunksCmd())
	return root
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file]",
		Short: "Print the text extracted from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := extractFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newChunksCmd() *cobra.Command {
	var (
		size     int
		asJSON   bool
		document string
	)
	cmd := &cobra.Command{
		Use:   "chunks [file]",
		Short: "Print the chunks the indexer would embed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := extractFile(args[0])
			if err != nil {
				return err
			}
			if document == "" {
				document = "local"
			}
			chunks := rag.SplitText(text, size)
			if asJSON {
				type chunkOut struct {
					ID   string `json:"id"`
					Text string `json:"text"`
				}
				out := make([]chunkOut, len(chunks))
				for i, c := range chunks {
					out[i] = chunkOut{ID: rag.ChunkID(document, i), Text: c}
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal chunks: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if len(chunks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No text found.")
				return nil
			}
			for i, c := range chunks {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", rag.ChunkID(document, i), c)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&size, "size", "s", rag.DefaultChunkSize, "chunk size in characters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output chunks as JSON")
	cmd.Flags().StringVar(&document, "document-id", "", "document id used to build chunk ids")
	return cmd
}

func extractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s failed: %w", path, err)
	}
	defer f.Close()
	text, err := pdfextract.ExtractText(f)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", path, err)
	}
	return text, nil
}
