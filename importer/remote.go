package importer

import (
	"context"
	"fmt"

	"hamsterjira/jira"
	"hamsterjira/ticket"
	"hamsterjira/worklog"
)

// WorklogSource is the read side of the Jira client.
type WorklogSource interface {
	SearchIssues(ctx context.Context, jql string) ([]jira.Issue, error)
	ListWorklogs(ctx context.Context, issueKey string) ([]jira.Worklog, error)
}

type RemoteResult struct {
	IssuesSearched int
	WorklogsRead   int
	OtherAuthors   int
	BeforeCutoff   int
	Records        []worklog.Record
}

// LoadRemote collects the worklogs accountID wrote since the cutoff. The issue
// search is date grained, so every worklog is checked against the exact cutoff again.
func LoadRemote(ctx context.Context, source WorklogSource, accountID string, options Options) (*RemoteResult, error) {
	logger := options.logger()
	loc := options.location()

	jql := jira.WorklogAuthorJQL(accountID, options.Cutoff)
	issues, err := source.SearchIssues(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("search jira issues: %w", err)
	}

	logger.Info("parsing worklogs: start", "issues", len(issues))
	result := &RemoteResult{IssuesSearched: len(issues), Records: make([]worklog.Record, 0, len(issues)*2)}
	for _, issue := range issues {
		ref, err := ticket.ParseKey(issue.Key)
		if err != nil {
			return nil, fmt.Errorf("issue returned by search: %w", err)
		}
		if issue.ProjectKey != "" {
			ref.Project = issue.ProjectKey
		}

		worklogs, err := source.ListWorklogs(ctx, issue.Key)
		if err != nil {
			return nil, fmt.Errorf("load worklogs of %s: %w", issue.Key, err)
		}
		result.WorklogsRead += len(worklogs)

		for _, entry := range worklogs {
			if entry.AuthorAccountID != accountID {
				result.OtherAuthors++
				continue
			}
			start := entry.Started.In(loc)
			if !start.After(options.Cutoff) {
				result.BeforeCutoff++
				continue
			}
			duration := entry.TimeSpent()
			result.Records = append(result.Records, worklog.Record{
				LogID:       entry.ID,
				Start:       start,
				End:         start.Add(duration),
				Duration:    duration,
				Label:       issue.Summary,
				Description: "",
				Project:     ref.Project,
				IssueNumber: ref.Number,
				Day:         options.DayStart.LogicalDay(start),
				Origin:      worklog.OriginRemote,
			})
		}
	}
	logger.Info("parsing worklogs: finished", "issues", len(issues), "records", len(result.Records))

	return result, nil
}
