package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codewiki/internal/docctx"
	"codewiki/internal/llm"
)

// issueClient is the shared machinery behind the GitHub and Gitee issue
// search tools. The two providers differ only in endpoint shapes and auth
// headers.
type issueClient struct {
	provider   string
	token      string
	repoOwner  string
	repoName   string
	httpClient *http.Client
}

// GithubTool searches issues and issue comments via the GitHub REST v3 API.
type GithubTool struct {
	issueClient
}

// NewGithubTool builds the GitHub issue tool for one repository.
func NewGithubTool(token, owner, repo string) *GithubTool {
	return &GithubTool{issueClient{
		provider:   "github",
		token:      token,
		repoOwner:  owner,
		repoName:   repo,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}}
}

// GiteeTool searches issues and issue comments via the Gitee REST v5 API.
type GiteeTool struct {
	issueClient
}

// NewGiteeTool builds the Gitee issue tool for one repository.
func NewGiteeTool(token, owner, repo string) *GiteeTool {
	return &GiteeTool{issueClient{
		provider:   "gitee",
		token:      token,
		repoOwner:  owner,
		repoName:   repo,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}}
}

func issueDeclarations(provider string) []llm.Tool {
	return []llm.Tool{
		{
			Name:        provider + "_search_issues",
			Description: fmt.Sprintf("Search %s issues of the current repository.", provider),
			Params: map[string]llm.ToolParam{
				"query":       {Type: "string", Description: "Search keywords"},
				"max_results": {Type: "integer", Description: "Maximum issues to return, default 10"},
			},
			Required: []string{"query"},
		},
		{
			Name:        provider + "_search_issue_comments",
			Description: fmt.Sprintf("Fetch comments of one %s issue by number.", provider),
			Params: map[string]llm.ToolParam{
				"issue_number": {Type: "integer", Description: "Issue number"},
				"max_results":  {Type: "integer", Description: "Maximum comments to return, default 10"},
			},
			Required: []string{"issue_number"},
		},
	}
}

func (t *GithubTool) Declarations() []llm.Tool { return issueDeclarations("github") }
func (t *GiteeTool) Declarations() []llm.Tool  { return issueDeclarations("gitee") }

func (t *GithubTool) Execute(ctx context.Context, name, args string) (string, error) {
	return t.execute(ctx, name, args)
}

func (t *GiteeTool) Execute(ctx context.Context, name, args string) (string, error) {
	return t.execute(ctx, name, args)
}

// wireIssue is the subset of issue fields both providers return.
type wireIssue struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	URL     string `json:"url"`
	State   string `json:"state"`
	Number  int    `json:"number"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
}

type wireComment struct {
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
}

func (c *issueClient) execute(ctx context.Context, name, args string) (string, error) {
	switch {
	case strings.HasSuffix(name, "_search_issues"):
		params := struct {
			Query      string `json:"query"`
			MaxResults int    `json:"max_results"`
		}{MaxResults: 10}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		return c.searchIssues(ctx, params.Query, params.MaxResults)
	case strings.HasSuffix(name, "_search_issue_comments"):
		params := struct {
			IssueNumber int `json:"issue_number"`
			MaxResults  int `json:"max_results"`
		}{MaxResults: 10}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		return c.issueComments(ctx, params.IssueNumber, params.MaxResults)
	}
	return "", fmt.Errorf("unsupported tool %q", name)
}

func (c *issueClient) searchURL(query string, limit int) string {
	if c.provider == "gitee" {
		q := url.Values{}
		q.Set("q", query)
		q.Set("per_page", fmt.Sprint(limit))
		if c.token != "" {
			q.Set("access_token", c.token)
		}
		return fmt.Sprintf("https://gitee.com/api/v5/search/issues?repo=%s/%s&%s",
			url.PathEscape(c.repoOwner), url.PathEscape(c.repoName), q.Encode())
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s repo:%s/%s", query, c.repoOwner, c.repoName))
	q.Set("per_page", fmt.Sprint(limit))
	return "https://api.github.com/search/issues?" + q.Encode()
}

func (c *issueClient) commentsURL(number, limit int) string {
	if c.provider == "gitee" {
		q := url.Values{}
		q.Set("per_page", fmt.Sprint(limit))
		if c.token != "" {
			q.Set("access_token", c.token)
		}
		return fmt.Sprintf("https://gitee.com/api/v5/repos/%s/%s/issues/%d/comments?%s",
			url.PathEscape(c.repoOwner), url.PathEscape(c.repoName), number, q.Encode())
	}
	return fmt.Sprintf("https://api.github.com/repos/%s/%s/issues/%d/comments?per_page=%d",
		url.PathEscape(c.repoOwner), url.PathEscape(c.repoName), number, limit)
}

func (c *issueClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := llm.Retry(ctx, llm.DefaultMaxAttempts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.provider == "github" && c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s request failed with status %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil
	})
	return body, err
}

func (c *issueClient) searchIssues(ctx context.Context, query string, limit int) (string, error) {
	body, err := c.get(ctx, c.searchURL(query, limit))
	if err != nil {
		return "", err
	}

	var issues []wireIssue
	if c.provider == "github" {
		var wrapper struct {
			Items []wireIssue `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		issues = wrapper.Items
	} else {
		if err := json.Unmarshal(body, &issues); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
	}
	if len(issues) > limit {
		issues = issues[:limit]
	}

	dc := docctx.From(ctx)
	out := make([]docctx.GitIssue, 0, len(issues))
	for _, i := range issues {
		issue := docctx.GitIssue{
			Title:     i.Title,
			URL:       i.URL,
			Content:   i.Body,
			Author:    i.User.Login,
			HTMLURL:   i.HTMLURL,
			State:     i.State,
			Number:    i.Number,
			CreatedAt: i.CreatedAt,
		}
		out = append(out, issue)
		if dc != nil {
			dc.AddIssue(issue)
		}
	}

	payload, err := json.Marshal(map[string]interface{}{"issues": out})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (c *issueClient) issueComments(ctx context.Context, number, limit int) (string, error) {
	body, err := c.get(ctx, c.commentsURL(number, limit))
	if err != nil {
		return "", err
	}
	var comments []wireComment
	if err := json.Unmarshal(body, &comments); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(comments) > limit {
		comments = comments[:limit]
	}
	payload, err := json.Marshal(map[string]interface{}{"comments": comments})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
