package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hamsterjira/internal/timeutil"
	"hamsterjira/jira"
	"hamsterjira/worklog"
)

type fakeWorklogSource struct {
	issues   []jira.Issue
	worklogs map[string][]jira.Worklog
	jql      string
	listErr  error
}

func (f *fakeWorklogSource) SearchIssues(_ context.Context, jql string) ([]jira.Issue, error) {
	f.jql = jql
	return f.issues, nil
}

func (f *fakeWorklogSource) ListWorklogs(_ context.Context, issueKey string) ([]jira.Worklog, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.worklogs[issueKey], nil
}

func TestLoadRemote_FiltersAuthorAndCutoff(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	cutoff := time.Date(2026, 3, 1, 5, 0, 0, 0, loc)
	source := &fakeWorklogSource{
		issues: []jira.Issue{{Key: "PROJ-5", ProjectKey: "PROJ", Summary: "Login page"}},
		worklogs: map[string][]jira.Worklog{
			"PROJ-5": {
				{ID: "10", AuthorAccountID: "me", Started: time.Date(2026, 3, 2, 11, 34, 0, 0, time.UTC), TimeSpentSeconds: 1800, Comment: "ignored"},
				{ID: "11", AuthorAccountID: "someone-else", Started: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), TimeSpentSeconds: 600},
				{ID: "12", AuthorAccountID: "me", Started: time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), TimeSpentSeconds: 600},
			},
		},
	}

	result, err := LoadRemote(context.Background(), source, "me", Options{
		DayStart: timeutil.DayStart{Hour: 5},
		Cutoff:   cutoff,
		Location: loc,
	})
	if err != nil {
		t.Fatalf("load remote: %v", err)
	}

	if !strings.Contains(source.jql, `worklogAuthor = "me"`) || !strings.Contains(source.jql, `worklogDate >= "2026-03-01"`) {
		t.Fatalf("unexpected jql: %s", source.jql)
	}
	if result.IssuesSearched != 1 || result.WorklogsRead != 3 || result.OtherAuthors != 1 || result.BeforeCutoff != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}

	got := result.Records[0]
	if got.Origin != worklog.OriginRemote || got.LogID != "10" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Description != "" || got.Label != "Login page" {
		t.Fatalf("expected empty description and issue summary label, got %q/%q", got.Description, got.Label)
	}
	if got.Project != "PROJ" || got.IssueNumber != 5 || got.Duration != 30*time.Minute {
		t.Fatalf("unexpected key/duration: %s-%d %s", got.Project, got.IssueNumber, got.Duration)
	}
	if !got.End.Equal(got.Start.Add(30*time.Minute)) || got.Start.Location() != loc {
		t.Fatalf("unexpected start/end: %s %s", got.Start, got.End)
	}
	if got.Day.String() != "2026-03-02" {
		t.Fatalf("unexpected day: %s", got.Day)
	}
}

func TestLoadRemote_PropagatesReadFailure(t *testing.T) {
	t.Parallel()

	source := &fakeWorklogSource{
		issues:  []jira.Issue{{Key: "PROJ-5"}},
		listErr: errors.New("timeout"),
	}
	_, err := LoadRemote(context.Background(), source, "me", Options{})
	if err == nil || !strings.Contains(err.Error(), "PROJ-5") {
		t.Fatalf("expected wrapped read failure, got %v", err)
	}
}
