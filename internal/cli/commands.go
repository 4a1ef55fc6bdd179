package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docchat/backend/internal/storage/models"
)

const timeLayout = "2006-01-02 15:04:05"

func newIngestCmd(svc *services) *cobra.Command {
	var meta models.Metadata
	var category string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a local file",
		Long:  `Extracts, chunks and stores a PDF, DOCX, CSV, XLSX, TXT, MD or HTML file. The file itself is left in place.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			meta.Category = models.Category(category)
			mediaType := mime.TypeByExtension(filepath.Ext(path))
			doc, err := svc.processor.Ingest(cmd.Context(), data, filepath.Base(path), mediaType, meta)
			if err != nil {
				return err
			}

			chunks, err := svc.store.ListChunks(cmd.Context())
			if err != nil {
				return err
			}
			count := 0
			for _, c := range chunks {
				if c.DocumentID == doc.ID {
					count++
				}
			}

			cmd.Printf("Ingested %s\n", doc.Name)
			cmd.Printf("  ID:       %s\n", doc.ID)
			cmd.Printf("  Category: %s\n", doc.Category)
			cmd.Printf("  Chunks:   %d\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Document category (default General)")
	cmd.Flags().StringVar(&meta.CaseName, "case", "", "Indicator or case name")
	cmd.Flags().StringVar(&meta.Description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&meta.Source, "source", "", "Origin of the data")
	cmd.Flags().StringVar(&meta.Period, "period", "", "Reference period")
	return cmd
}

func newListCmd(svc *services) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := svc.processor.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				cmd.Println("No documents found")
				return nil
			}

			for _, d := range docs {
				cmd.Printf("  %s\n", d.ID)
				cmd.Printf("    Name:     %s\n", d.Name)
				cmd.Printf("    Category: %s\n", d.Category)
				if d.CaseName != "" {
					cmd.Printf("    Case:     %s\n", d.CaseName)
				}
				cmd.Printf("    Created:  %s\n", d.CreatedAt.Format(timeLayout))
				cmd.Println()
			}
			cmd.Printf("Total: %d documents\n", len(docs))
			return nil
		},
	}
}

func newDeleteCmd(svc *services) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [doc-id]",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.processor.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSearchCmd(svc *services) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank stored chunks against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := models.ParseCategory(category)
			if !ok {
				return fmt.Errorf("unknown category %q", category)
			}

			results, err := svc.retriever.Search(cmd.Context(), strings.Join(args, " "), c)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				cmd.Println("No results")
				return nil
			}

			cmd.Println("Results:")
			for i, r := range results {
				cmd.Printf("%2d. [%d] %s (%s)\n", i+1, r.Score, r.Chunk.ID, r.Chunk.FileName)
				cmd.Printf("    %s\n", preview(r.Chunk.Content, 160))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Restrict results to a category")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
