package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List registered repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		repos, err := a.store.ListRepositories()
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "REPOSITORY\tPROVIDER\tSTATUS\tPROGRESS\tPATH")
		for _, r := range repos {
			status, progress := "-", "-"
			if doc, err := a.store.GetDocumentByRepo(r.ID); err == nil {
				status = string(doc.Status)
				progress = fmt.Sprintf("%d%%", doc.Progress)
			}
			fmt.Fprintf(w, "%s/%s\t%s\t%s\t%s\t%s\n",
				r.Organization, r.Name, r.Provider, status, progress, r.LocalPath)
		}
		return w.Flush()
	},
}
