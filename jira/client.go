package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
)

const searchPageSize = 100

// Client defines the Jira operations used by the worklog sync.
type Client interface {
	CurrentUser(ctx context.Context) (User, error)
	ListProjectKeys(ctx context.Context) ([]string, error)
	SearchIssues(ctx context.Context, jql string) ([]Issue, error)
	ListWorklogs(ctx context.Context, issueKey string) ([]Worklog, error)
	GetWorklog(ctx context.Context, issueKey, worklogID string) (Worklog, error)
	DeleteWorklog(ctx context.Context, issueKey, worklogID string) error
	AddWorklog(ctx context.Context, issueKey string, worklog NewWorklog) (Worklog, error)
}

type User struct {
	AccountID   string
	DisplayName string
}

type Issue struct {
	Key        string
	ProjectKey string
	Summary    string
}

type Worklog struct {
	ID               string
	IssueKey         string
	AuthorAccountID  string
	Started          time.Time
	TimeSpentSeconds int
	Comment          string
}

func (w Worklog) TimeSpent() time.Duration {
	return time.Duration(w.TimeSpentSeconds) * time.Second
}

// NewWorklog is the payload for creating a worklog.
type NewWorklog struct {
	Started   time.Time
	TimeSpent time.Duration
	Comment   string
}

type ClientConfig struct {
	BaseURL  string
	Username string
	APIToken string
	// Transport is the underlying round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
	Timeout   time.Duration
}

// HTTPClient implements Client on top of go-jira with basic auth.
type HTTPClient struct {
	api *gojira.Client
}

func NewClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("jira server URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid jira server URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tp := gojira.BasicAuthTransport{
		Username:  strings.TrimSpace(cfg.Username),
		Password:  strings.TrimSpace(cfg.APIToken),
		Transport: cfg.Transport,
	}
	httpClient := tp.Client()
	httpClient.Timeout = timeout

	api, err := gojira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	return &HTTPClient{api: api}, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (User, error) {
	user, resp, err := c.api.User.GetSelfWithContext(ctx)
	if err != nil {
		return User{}, wrapError("get current user", resp, err)
	}
	return User{AccountID: user.AccountID, DisplayName: user.DisplayName}, nil
}

func (c *HTTPClient) ListProjectKeys(ctx context.Context) ([]string, error) {
	projects, resp, err := c.api.Project.GetListWithContext(ctx)
	if err != nil {
		return nil, wrapError("list projects", resp, err)
	}
	keys := make([]string, 0, len(*projects))
	for _, project := range *projects {
		keys = append(keys, project.Key)
	}
	return keys, nil
}

func (c *HTTPClient) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	options := &gojira.SearchOptions{
		StartAt:    0,
		MaxResults: searchPageSize,
		Fields:     []string{"project", "summary"},
	}

	out := make([]Issue, 0, 64)
	for {
		issues, resp, err := c.api.Issue.SearchWithContext(ctx, jql, options)
		if err != nil {
			return nil, wrapError("search issues", resp, err)
		}
		for _, issue := range issues {
			out = append(out, toIssue(issue))
		}
		if len(issues) == 0 || resp == nil || options.StartAt+len(issues) >= resp.Total {
			return out, nil
		}
		options.StartAt += len(issues)
	}
}

type worklogPage struct {
	StartAt    int `url:"startAt"`
	MaxResults int `url:"maxResults"`
}

func (c *HTTPClient) ListWorklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	page := &worklogPage{StartAt: 0, MaxResults: 1000}
	out := make([]Worklog, 0, 16)
	for {
		result, resp, err := c.api.Issue.GetWorklogsWithContext(ctx, issueKey, gojira.WithQueryOptions(page))
		if err != nil {
			return nil, wrapError(fmt.Sprintf("list worklogs of %s", issueKey), resp, err)
		}
		for _, record := range result.Worklogs {
			out = append(out, toWorklog(issueKey, record))
		}
		if len(result.Worklogs) == 0 || page.StartAt+len(result.Worklogs) >= result.Total {
			return out, nil
		}
		page.StartAt += len(result.Worklogs)
	}
}

func (c *HTTPClient) GetWorklog(ctx context.Context, issueKey, worklogID string) (Worklog, error) {
	op := fmt.Sprintf("get worklog %s of %s", worklogID, issueKey)
	req, err := c.api.NewRequestWithContext(ctx, http.MethodGet, worklogPath(issueKey, worklogID), nil)
	if err != nil {
		return Worklog{}, fmt.Errorf("%s: %w", op, err)
	}
	var record gojira.WorklogRecord
	resp, err := c.api.Do(req, &record)
	if err != nil {
		return Worklog{}, wrapError(op, resp, err)
	}
	return toWorklog(issueKey, record), nil
}

func (c *HTTPClient) DeleteWorklog(ctx context.Context, issueKey, worklogID string) error {
	op := fmt.Sprintf("delete worklog %s of %s", worklogID, issueKey)
	req, err := c.api.NewRequestWithContext(ctx, http.MethodDelete, worklogPath(issueKey, worklogID), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.api.Do(req, nil)
	if err != nil {
		return wrapError(op, resp, err)
	}
	return nil
}

func (c *HTTPClient) AddWorklog(ctx context.Context, issueKey string, worklog NewWorklog) (Worklog, error) {
	if worklog.TimeSpent < time.Second {
		return Worklog{}, fmt.Errorf("add worklog to %s: time spent must be at least one second", issueKey)
	}
	started := gojira.Time(worklog.Started)
	record := &gojira.WorklogRecord{
		Started:          &started,
		TimeSpentSeconds: int(worklog.TimeSpent / time.Second),
		Comment:          worklog.Comment,
	}
	created, resp, err := c.api.Issue.AddWorklogRecordWithContext(ctx, issueKey, record)
	if err != nil {
		return Worklog{}, wrapError(fmt.Sprintf("add worklog to %s", issueKey), resp, err)
	}
	return toWorklog(issueKey, *created), nil
}

// WorklogAuthorJQL selects issues with worklogs by accountID on or after since.
func WorklogAuthorJQL(accountID string, since time.Time) string {
	return fmt.Sprintf(`worklogAuthor = %q AND worklogDate >= "%s"`, accountID, since.Format("2006-01-02"))
}

func worklogPath(issueKey, worklogID string) string {
	return fmt.Sprintf("rest/api/2/issue/%s/worklog/%s", url.PathEscape(issueKey), url.PathEscape(worklogID))
}

func toIssue(issue gojira.Issue) Issue {
	out := Issue{Key: issue.Key}
	if issue.Fields != nil {
		out.ProjectKey = issue.Fields.Project.Key
		out.Summary = issue.Fields.Summary
	}
	return out
}

func toWorklog(issueKey string, record gojira.WorklogRecord) Worklog {
	out := Worklog{
		ID:               record.ID,
		IssueKey:         issueKey,
		TimeSpentSeconds: record.TimeSpentSeconds,
		Comment:          record.Comment,
	}
	if record.Author != nil {
		out.AuthorAccountID = record.Author.AccountID
	}
	if record.Started != nil {
		out.Started = time.Time(*record.Started)
	}
	return out
}
