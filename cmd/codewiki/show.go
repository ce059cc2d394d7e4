package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

var (
	showArticle string
	showPlain   bool
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	staleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var showCmd = &cobra.Command{
	Use:   "show <repo>",
	Short: "Display a generated wiki in the terminal",
	Long: `Display the generated wiki for a repository. Without flags the
overview and the article catalogue are shown; --article renders one
article by its URL slug.`,
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
		doc, err := a.store.GetDocumentByRepo(r.ID)
		if err != nil {
			return err
		}

		if showArticle != "" {
			return renderArticle(a, doc.ID, showArticle)
		}
		return renderWiki(a, r, doc.ID)
	},
}

func renderWiki(a *app, r *wiki.Repository, docID string) error {
	if ov, err := a.store.GetOverview(docID); err == nil && ov != nil {
		out, err := renderMarkdown(ov.Content)
		if err != nil {
			return err
		}
		fmt.Println(out)
	}

	catalogs, err := a.store.ListCatalogs(docID)
	if err != nil {
		return err
	}
	if len(catalogs) == 0 {
		fmt.Println(dimStyle.Render("No articles generated yet."))
		return nil
	}

	fmt.Println(headingStyle.Render("Articles"))
	byParent := map[string][]*wiki.Catalog{}
	for _, c := range catalogs {
		byParent[c.ParentID] = append(byParent[c.ParentID], c)
	}
	var walk func(parentID string, depth int)
	walk = func(parentID string, depth int) {
		for _, c := range byParent[parentID] {
			line := strings.Repeat("  ", depth) + c.Name + dimStyle.Render(" ("+c.URL+")")
			if !c.IsCompleted {
				line += " " + staleStyle.Render("[pending]")
			}
			fmt.Println(line)
			walk(c.ID, depth+1)
		}
	}
	walk("", 1)
	return nil
}

func renderArticle(a *app, docID, slug string) error {
	catalogs, err := a.store.ListCatalogs(docID)
	if err != nil {
		return err
	}
	for _, c := range catalogs {
		if c.URL != slug {
			continue
		}
		content, err := a.store.GetContent(c.ID)
		if err != nil {
			return err
		}
		if content == nil {
			return wikierr.New(wikierr.KindNotFound, "article %q has no generated content", slug)
		}
		out, err := renderMarkdown(content.Body)
		if err != nil {
			return err
		}
		fmt.Println(out)

		sources, err := a.store.ListContentSources(content.ID)
		if err == nil && len(sources) > 0 {
			fmt.Println(dimStyle.Render("Sources:"))
			for _, src := range sources {
				fmt.Println(dimStyle.Render("  " + src.SourcePath))
			}
		}
		return nil
	}
	return wikierr.New(wikierr.KindNotFound, "no article with url %q", slug)
}

func renderMarkdown(body string) (string, error) {
	if showPlain {
		return body, nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return body, nil
	}
	out, err := renderer.Render(body)
	if err != nil {
		return body, nil
	}
	return out, nil
}

func init() {
	showCmd.Flags().StringVar(&showArticle, "article", "", "render one article by its URL slug")
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "print raw markdown without terminal styling")
}
