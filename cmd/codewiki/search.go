package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <repo> <query>",
	Short: "Semantic search over a generated wiki",
	Long: `Search a repository's indexed wiki with a fused text and vector
query. The repository must have been generated and indexed first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.resolveRepo(args[0])
		if err != nil {
			return err
		}
		doc, err := a.store.GetDocumentByRepo(r.ID)
		if err != nil {
			return err
		}
		query := strings.Join(args[1:], " ")

		ix, err := a.indexerFor()
		if err != nil {
			return err
		}
		defer ix.Close()

		res, err := ix.Query(cmd.Context(), doc.ID, query, searchLimit)
		if err != nil {
			return err
		}
		ids := res.ChunkIDs()
		if len(ids) == 0 {
			fmt.Println("No results.")
			return nil
		}

		keywords := strings.Fields(query)
		highlights := res.Highlight("content", keywords)
		for i, id := range ids {
			src := res.Source(id)
			title, _ := src["title"].(string)
			kind, _ := src["kind"].(string)
			fmt.Printf("%d. %s %s\n", i+1, title, dimStyle.Render("["+kind+"]"))
			if h := highlights[id]; h != "" {
				fmt.Printf("   %s\n", strings.ReplaceAll(h, "\n", " "))
			}
			if path, _ := src["source_path"].(string); path != "" {
				fmt.Printf("   %s\n", dimStyle.Render(path))
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
}
