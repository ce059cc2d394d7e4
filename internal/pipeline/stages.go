package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codewiki/internal/docctx"
	"codewiki/internal/filetree"
	"codewiki/internal/logging"
	"codewiki/internal/outparse"
	"codewiki/internal/scanner"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

var readmeCandidates = []string{
	"README.md", "README.MD", "readme.md", "Readme.md",
	"README", "README.rst", "README.txt",
}

// stageReadme stores the repository README: the literal file when one
// exists, otherwise a model-written summary of the tree.
func (p *Pipeline) stageReadme(ctx context.Context, st *state) error {
	for _, name := range readmeCandidates {
		data, err := os.ReadFile(filepath.Join(st.repo.LocalPath, name))
		if err == nil {
			st.readme = string(data)
			return p.store.SetDocumentReadme(st.doc.ID, st.readme)
		}
	}

	listing, _, err := p.encodeTree(ctx, st)
	if err != nil {
		return err
	}
	resp, err := p.ask(ctx, "readme", map[string]interface{}{
		"catalogue":       listing,
		"repository_name": st.repo.Name,
	}, "Write a README for this repository.")
	if err != nil {
		return err
	}
	st.readme = outparse.Extract(resp, "readme")
	return p.store.SetDocumentReadme(st.doc.ID, st.readme)
}

// stageCatalogue produces the optimized directory rendering. Large trees
// are handed to the model for reduction when the smart filter is enabled.
func (p *Pipeline) stageCatalogue(ctx context.Context, st *state) error {
	encoded, count, err := p.encodeTree(ctx, st)
	if err != nil {
		return err
	}
	st.catalogue = encoded

	if p.cfg.EnableSmartFilter && count > p.cfg.SmartFilterThreshold {
		logging.Pipeline("document %s: %d entries exceed threshold %d, delegating reduction",
			st.doc.ID, count, p.cfg.SmartFilterThreshold)
		resp, err := p.ask(ctx, "catalogue", map[string]interface{}{
			"catalogue": encoded,
			"readme":    st.readme,
		}, "Reduce this directory listing to the entries that matter for documentation.")
		if err != nil {
			return err
		}
		st.catalogue = outparse.Extract(resp, "response_file")
	}
	return p.store.SetDocumentDirectory(st.doc.ID, st.catalogue)
}

func (p *Pipeline) encodeTree(ctx context.Context, st *state) (string, int, error) {
	sc, err := scanner.New(st.repo.LocalPath)
	if err != nil {
		return "", 0, err
	}
	infos, err := sc.Scan(ctx)
	if err != nil {
		return "", 0, err
	}
	tree := filetree.Build(st.repo.LocalPath, infos)
	encoded, err := filetree.Encode(tree, filetree.Format(p.cfg.CatalogueFormat))
	if err != nil {
		return "", 0, err
	}
	return encoded, len(infos), nil
}

// stageClassify tags the repository. An unrecognized answer leaves the
// classification empty rather than failing the run.
func (p *Pipeline) stageClassify(ctx context.Context, st *state) error {
	resp, err := p.ask(ctx, "classify", map[string]interface{}{
		"catalogue": st.catalogue,
		"readme":    st.readme,
	}, "Classify this repository.")
	if err != nil {
		return err
	}
	st.classify = outparse.Classify(resp)
	if st.classify == "" {
		logging.Pipeline("document %s: no usable classification, continuing without one", st.doc.ID)
	}
	return p.store.SetDocumentClassify(st.doc.ID, st.classify)
}

// stageMiniMap builds the knowledge mind-map. Unparseable output yields an
// empty map, never a failed stage.
func (p *Pipeline) stageMiniMap(ctx context.Context, st *state) error {
	resp, err := p.ask(ctx, "minimap", map[string]interface{}{
		"catalogue": st.catalogue,
	}, "Produce a knowledge map of this repository as nested headings.")
	if err != nil {
		return err
	}
	root := outparse.ParseMiniMap(resp)
	value, err := json.Marshal(root)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "serialize mini map")
	}
	return p.store.ReplaceMiniMap(st.doc.ID, string(value))
}

// stageOverview writes the project overview article.
func (p *Pipeline) stageOverview(ctx context.Context, st *state) error {
	resp, err := p.ask(ctx, "overview", map[string]interface{}{
		"catalogue": st.catalogue,
		"readme":    st.readme,
		"classify":  st.classify,
	}, "Write the project overview.")
	if err != nil {
		return err
	}
	body := outparse.Extract(resp, "blog")
	return p.store.ReplaceOverview(st.doc.ID, st.repo.Name, body)
}

// catalogueItem is the wire shape the model returns for the topic tree.
type catalogueItem struct {
	Title    string          `json:"title"`
	Name     string          `json:"name"`
	Prompt   string          `json:"prompt"`
	Children []catalogueItem `json:"children"`
}

type catalogueWire struct {
	Items []catalogueItem `json:"items"`
}

// stageWikiCatalogue asks for the topic tree and replaces the stored
// catalog forest.
func (p *Pipeline) stageWikiCatalogue(ctx context.Context, st *state) error {
	resp, err := p.ask(ctx, "wiki_catalogue", map[string]interface{}{
		"catalogue":       st.catalogue,
		"classify":        st.classify,
		"repository_name": st.repo.Name,
	}, "Design the wiki catalogue for this repository.")
	if err != nil {
		return err
	}

	raw := outparse.ExtractJSON(resp, "response_file")
	var wire catalogueWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		// Some models return a bare array instead of the items wrapper.
		if err2 := json.Unmarshal([]byte(raw), &wire.Items); err2 != nil {
			return wikierr.Wrap(wikierr.KindTransient, err, "catalogue response is not valid JSON")
		}
	}
	if len(wire.Items) == 0 {
		return wikierr.New(wikierr.KindTransient, "catalogue response contained no items")
	}

	roots := toCatalogNodes(wire.Items)
	st.catalogs, err = p.store.ReplaceCatalogTree(st.doc.ID, roots)
	return err
}

func toCatalogNodes(items []catalogueItem) []*wiki.CatalogNode {
	var nodes []*wiki.CatalogNode
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = item.Name
		}
		if title == "" {
			continue
		}
		nodes = append(nodes, &wiki.CatalogNode{
			Name:     title,
			URL:      slugify(item.Name, title),
			Prompt:   item.Prompt,
			Children: toCatalogNodes(item.Children),
		})
	}
	return nodes
}

func slugify(name, title string) string {
	s := name
	if s == "" {
		s = title
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// stageWikiContent renders one article per leaf catalog. Leaves run
// concurrently up to the configured worker bound; each article commits its
// own transaction.
func (p *Pipeline) stageWikiContent(ctx context.Context, st *state) error {
	if st.catalogs == nil {
		all, err := p.store.ListCatalogs(st.doc.ID)
		if err != nil {
			return err
		}
		st.catalogs = all
	}
	leaves := wiki.LeafCatalogs(st.catalogs)
	if len(leaves) == 0 {
		return nil
	}

	workers := p.cfg.ContentWorkers
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, leaf := range leaves {
		g.Go(func() error {
			return p.generateContent(gctx, st, leaf)
		})
	}
	return g.Wait()
}

func (p *Pipeline) generateContent(ctx context.Context, st *state, leaf *wiki.Catalog) error {
	return docctx.Scope(ctx, func(ctx context.Context, dc *docctx.Context) error {
		question := leaf.Prompt
		if question == "" {
			question = "Write the wiki article for the topic: " + leaf.Name
		}
		resp, err := p.ask(ctx, "wiki_content", map[string]interface{}{
			"catalogue":     st.catalogue,
			"classify":      st.classify,
			"catalog_name":  leaf.Name,
			"catalog_title": leaf.Name,
		}, question)
		if err != nil {
			return err
		}
		body := outparse.Extract(resp, "blog")

		files := dc.Files()
		sources := make([]wiki.ContentSource, 0, len(files))
		for _, f := range files {
			sources = append(sources, wiki.ContentSource{
				SourcePath:  p.relToRepo(st.repo, f),
				DisplayName: filepath.Base(f),
			})
		}
		sourcesJSON, _ := json.Marshal(files)
		content := &wiki.Content{
			Title:       leaf.Name,
			Description: leaf.Description,
			Body:        body,
			SourcesJSON: string(sourcesJSON),
		}
		return p.store.UpsertContent(leaf.ID, content, sources)
	})
}

func (p *Pipeline) relToRepo(r *wiki.Repository, path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(r.LocalPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// changelogEntry is the wire shape of one change-log item.
type changelogEntry struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

const changelogCommitLimit = 50

// stageChangelog summarizes recent commit history. Repositories without a
// remote are skipped; the stage still succeeds.
func (p *Pipeline) stageChangelog(ctx context.Context, st *state) error {
	if st.repo.RemoteURL == "" {
		logging.PipelineDebug("document %s: no remote URL, skipping change log", st.doc.ID)
		return nil
	}
	commits, err := p.history(st.repo.LocalPath, changelogCommitLimit)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, c := range commits {
		sb.WriteString(c.Date.Format("2006-01-02"))
		sb.WriteString(" ")
		sb.WriteString(strings.SplitN(c.Message, "\n", 2)[0])
		sb.WriteString("\n")
	}
	resp, err := p.ask(ctx, "changelog", map[string]interface{}{
		"commits": sb.String(),
		"readme":  st.readme,
	}, "Summarize the notable changes as a change log.")
	if err != nil {
		return err
	}

	raw := outparse.ExtractJSON(resp, "changelog")
	var entries []changelogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		var single changelogEntry
		if err2 := json.Unmarshal([]byte(raw), &single); err2 != nil {
			return wikierr.Wrap(wikierr.KindTransient, err, "changelog response is not valid JSON")
		}
		entries = []changelogEntry{single}
	}

	records := make([]*wiki.CommitRecord, 0, len(entries))
	for _, e := range entries {
		when, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			when = time.Now().UTC()
		}
		records = append(records, &wiki.CommitRecord{
			CommitDate:  when,
			Title:       e.Title,
			Description: e.Description,
		})
	}
	return p.store.ReplaceCommitRecords(st.doc.ID, records)
}
