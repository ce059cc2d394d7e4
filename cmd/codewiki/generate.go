package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var generateNoIndex bool

var generateCmd = &cobra.Command{
	Use:   "generate <repo>",
	Short: "Run the wiki generation pipeline for a repository",
	Long: `Run all generation stages for a registered repository: readme,
directory catalogue, classification, mind-map, overview, article
catalogue, article content, and change log. The repository is named by
id or by org/name. Interrupting with Ctrl-C cancels the run; a later
invocation resumes from a clean state because every stage rewrites its
own output.`,
	Args: cobra.ExactArgs(1),
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := a.pipelineFor(r)
		if err != nil {
			return err
		}
		fmt.Printf("Generating wiki for %s/%s ...\n", r.Organization, r.Name)
		docID, err := p.Run(ctx, r.ID)
		if err != nil {
			return err
		}
		fmt.Println("Generation completed.")

		if generateNoIndex || a.cfg.Embedding.Provider == "" {
			return nil
		}
		ix, err := a.indexerFor()
		if err != nil {
			return err
		}
		defer ix.Close()
		fmt.Println("Indexing for semantic search ...")
		if err := ix.IndexDocument(ctx, docID); err != nil {
			return err
		}
		fmt.Println("Indexing completed.")
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&generateNoIndex, "no-index", false, "skip vector indexing after generation")
}
