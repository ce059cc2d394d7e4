package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <repo>",
	Short: "Show the generation status of a repository's wiki",
	Args:  cobra.ExactArgs(1),
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

		fmt.Printf("%s/%s\n", r.Organization, r.Name)
		fmt.Printf("  status:   %s (%d%%)\n", doc.Status, doc.Progress)
		if doc.ProcessingMessage != "" {
			fmt.Printf("  message:  %s\n", doc.ProcessingMessage)
		}
		fmt.Printf("  classify: %s\n", valueOrDash(doc.Classify))
		fmt.Printf("  indexed:  %v\n", doc.IsEmbedded)
		fmt.Printf("  updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
