// Package pipeline drives one WikiDocument from Pending to Completed
// through the ordered generation stages. Stages are strictly sequential
// within a document; separate documents may run concurrently.
package pipeline

import (
	"context"
	"time"

	"codewiki/internal/config"
	"codewiki/internal/kernel"
	"codewiki/internal/llm"
	"codewiki/internal/logging"
	"codewiki/internal/metrics"
	"codewiki/internal/prompt"
	"codewiki/internal/repo"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

// Invoker is the slice of the kernel the pipeline needs. *kernel.Kernel
// satisfies it.
type Invoker interface {
	InvokePrompt(ctx context.Context, system, userPrompt, question string, history []llm.Message, choice kernel.FunctionChoice) (llm.ChatResponse, int)
}

// Pipeline generates wikis. Safe for concurrent Run calls.
type Pipeline struct {
	store   *wiki.Store
	invoker Invoker
	prompts *prompt.Engine
	cfg     config.WikiGenConfig
	lang    string

	// Injection points for tests.
	sleep   func(time.Duration)
	history func(path string, limit int) ([]repo.CommitInfo, error)
}

// New builds a pipeline over the given store, kernel, and prompt root.
func New(store *wiki.Store, invoker Invoker, prompts *prompt.Engine, cfg config.WikiGenConfig, language string) *Pipeline {
	return &Pipeline{
		store:   store,
		invoker: invoker,
		prompts: prompts,
		cfg:     cfg,
		lang:    language,
		sleep:   time.Sleep,
		history: repo.History,
	}
}

// Stage progress values on success.
const (
	progressReadme        = 10
	progressCatalogue     = 25
	progressClassify      = 35
	progressMiniMap       = 45
	progressOverview      = 60
	progressWikiCatalogue = 75
	progressWikiContent   = 95
	progressChangelog     = 100
)

// Retry budgets. The directory-simplification stage leans hardest on the
// model, so it gets the larger budget.
const (
	defaultStageRetries   = 3
	catalogueStageRetries = 5
)

type stage struct {
	name     string
	progress int
	retries  int
	run      func(ctx context.Context, st *state) error
}

// state carries intermediate artifacts between stages of one run.
type state struct {
	repo      *wiki.Repository
	doc       *wiki.WikiDocument
	readme    string
	catalogue string
	classify  string
	catalogs  []*wiki.Catalog
}

// Run executes all stages for one repository's document and returns the
// document id. Re-running resets progress and recomputes every stage;
// each stage replaces its own prior output.
func (p *Pipeline) Run(ctx context.Context, repoID string) (string, error) {
	r, err := p.store.GetRepository(repoID)
	if err != nil {
		return "", err
	}
	doc, err := p.store.GetDocumentByRepo(repoID)
	if err != nil {
		if !wikierr.Is(err, wikierr.KindNotFound) {
			return "", err
		}
		doc, err = p.store.CreateDocument(repoID)
		if err != nil {
			return "", err
		}
	}

	st := &state{repo: r, doc: doc}
	if err := p.store.UpdateDocumentStatus(doc.ID, wiki.StatusProcessing, 0, "starting generation"); err != nil {
		return "", err
	}
	logging.Pipeline("document %s: starting generation for %s/%s", doc.ID, r.Organization, r.Name)

	stages := []stage{
		{"readme", progressReadme, defaultStageRetries, p.stageReadme},
		{"catalogue", progressCatalogue, catalogueStageRetries, p.stageCatalogue},
		{"classify", progressClassify, defaultStageRetries, p.stageClassify},
		{"minimap", progressMiniMap, defaultStageRetries, p.stageMiniMap},
		{"overview", progressOverview, defaultStageRetries, p.stageOverview},
		{"wiki_catalogue", progressWikiCatalogue, defaultStageRetries, p.stageWikiCatalogue},
		{"wiki_content", progressWikiContent, defaultStageRetries, p.stageWikiContent},
		{"changelog", progressChangelog, defaultStageRetries, p.stageChangelog},
	}

	progress := 0
	for _, s := range stages {
		if err := p.runStage(ctx, st, s, progress); err != nil {
			if wikierr.Is(err, wikierr.KindCanceled) {
				p.store.UpdateDocumentStatus(doc.ID, wiki.StatusCanceled, progress, "generation canceled")
				metrics.DocumentsCompleted.WithLabelValues(string(wiki.StatusCanceled)).Inc()
				return doc.ID, err
			}
			p.store.UpdateDocumentStatus(doc.ID, wiki.StatusFailed, progress, err.Error())
			metrics.DocumentsCompleted.WithLabelValues(string(wiki.StatusFailed)).Inc()
			logging.PipelineError("document %s: stage %s failed: %v", doc.ID, s.name, err)
			return doc.ID, err
		}
		progress = s.progress
	}

	if err := p.store.UpdateDocumentStatus(doc.ID, wiki.StatusCompleted, 100, "generation complete"); err != nil {
		return doc.ID, err
	}
	metrics.DocumentsCompleted.WithLabelValues(string(wiki.StatusCompleted)).Inc()
	logging.Pipeline("document %s: generation complete", doc.ID)
	return doc.ID, nil
}

// runStage runs one stage with its retry budget. Waits between attempts
// grow linearly; only retryable failures consume the budget.
func (p *Pipeline) runStage(ctx context.Context, st *state, s stage, prevProgress int) error {
	if err := ctx.Err(); err != nil {
		return wikierr.Wrap(wikierr.KindCanceled, err, "before stage %s", s.name)
	}
	p.store.UpdateDocumentStatus(st.doc.ID, wiki.StatusProcessing, prevProgress, "running "+s.name)

	start := time.Now()
	var err error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			metrics.StageRetries.WithLabelValues(s.name).Inc()
			logging.Pipeline("document %s: retrying stage %s (attempt %d)", st.doc.ID, s.name, attempt+1)
			p.sleep(time.Duration(5*attempt) * time.Second)
		}
		err = s.run(ctx, st)
		if err == nil {
			metrics.StageDuration.WithLabelValues(s.name, "ok").Observe(time.Since(start).Seconds())
			p.store.UpdateDocumentStatus(st.doc.ID, wiki.StatusProcessing, s.progress, s.name+" complete")
			logging.Pipeline("document %s: stage %s complete (progress %d)", st.doc.ID, s.name, s.progress)
			return nil
		}
		if ctx.Err() != nil {
			metrics.StageDuration.WithLabelValues(s.name, "canceled").Observe(time.Since(start).Seconds())
			return wikierr.Wrap(wikierr.KindCanceled, ctx.Err(), "stage %s", s.name)
		}
		if !wikierr.IsRetryable(err) {
			break
		}
	}
	metrics.StageDuration.WithLabelValues(s.name, "failed").Observe(time.Since(start).Seconds())
	return err
}

// ask renders the named template from the wiki prompt tree and invokes the
// model with it. A failed response surfaces as a transient error so the
// stage retry budget applies.
func (p *Pipeline) ask(ctx context.Context, name string, params map[string]interface{}, question string) (string, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["language"] = p.lang
	system, err := p.prompts.Render("wiki", name, params)
	if err != nil {
		return "", err
	}
	resp, tokens := p.invoker.InvokePrompt(ctx, system, "", question, nil, kernel.FunctionChoiceAuto)
	logging.PipelineDebug("prompt %s used %d tokens", name, tokens)
	if !resp.Success {
		return "", wikierr.New(wikierr.KindTransient, "model call %s failed: %s", name, resp.Content)
	}
	return resp.Content, nil
}
