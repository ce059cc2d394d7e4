package main

import (
	"strings"

	"codewiki/internal/config"
	"codewiki/internal/embedding"
	"codewiki/internal/kernel"
	"codewiki/internal/llm"
	"codewiki/internal/pipeline"
	"codewiki/internal/prompt"
	"codewiki/internal/repo"
	"codewiki/internal/tools"
	"codewiki/internal/vector"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

// app wires the stores, kernel, and pipeline for one command invocation.
type app struct {
	cfg     *config.Config
	store   *wiki.Store
	repos   *repo.Service
	factory *kernel.Factory

	// byWorkingDir lets the kernel build closure recover the repository a
	// cache key refers to, so issue-search tools know their remote.
	byWorkingDir map[string]*wiki.Repository
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := wiki.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:          cfg,
		store:        store,
		repos:        repo.NewService(store, cfg.RepoStoragePath),
		byWorkingDir: map[string]*wiki.Repository{},
	}
	a.factory = kernel.NewFactory(func(opts kernel.Options) (*kernel.Kernel, error) {
		client, err := llm.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		executors := []tools.Executor{
			tools.NewFileTool(opts.WorkingDir),
			tools.NewDepsTool(opts.WorkingDir),
			tools.NewRagTool(cfg.Mem0),
		}
		if r := a.byWorkingDir[opts.WorkingDir]; r != nil {
			if cfg.GitHub.Token != "" && r.Provider == "github" {
				executors = append(executors, tools.NewGithubTool(cfg.GitHub.Token, r.Organization, r.Name))
			}
			if cfg.Gitee.Token != "" && r.Provider == "gitee" {
				executors = append(executors, tools.NewGiteeTool(cfg.Gitee.Token, r.Organization, r.Name))
			}
		}
		return kernel.New(client, tools.NewRegistry(executors...), cfg.WikiGen.PromptRoot), nil
	})
	return a, nil
}

func (a *app) close() {
	a.store.Close()
}

// resolveRepo accepts either a repository id or an "org/name" pair.
func (a *app) resolveRepo(ref string) (*wiki.Repository, error) {
	if org, name, ok := strings.Cut(ref, "/"); ok {
		repos, err := a.store.ListRepositories()
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			if r.Organization == org && r.Name == name {
				return r, nil
			}
		}
		return nil, wikierr.New(wikierr.KindNotFound, "repository %s not registered", ref)
	}
	return a.store.GetRepository(ref)
}

// pipelineFor builds the generation pipeline scoped to one repository's
// working directory.
func (a *app) pipelineFor(r *wiki.Repository) (*pipeline.Pipeline, error) {
	_, provider, err := a.cfg.ActiveProvider()
	if err != nil {
		return nil, err
	}
	a.byWorkingDir[r.LocalPath] = r
	k, err := a.factory.Get(kernel.Options{
		BaseURL:    provider.BaseURL,
		APIKey:     provider.APIKey,
		WorkingDir: r.LocalPath,
		Model:      provider.ModelName,
	})
	if err != nil {
		return nil, err
	}
	engine := prompt.NewEngine(a.cfg.WikiGen.PromptRoot)
	return pipeline.New(a.store, k, engine, a.cfg.WikiGen, a.cfg.Language), nil
}

// indexerFor builds the vector indexer when a vector store is configured.
func (a *app) indexerFor() (*vector.Indexer, error) {
	eng, err := embedding.NewEngine(a.cfg.Embedding)
	if err != nil {
		return nil, err
	}
	vs, err := vector.NewStore(a.cfg.VectorStore, eng.Dimensions(), "mapping")
	if err != nil {
		return nil, err
	}
	return vector.NewIndexer(vs, eng, a.store), nil
}
