package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:  server.URL,
		Username: "jane@example.com",
		APIToken: "secret",
	})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	_, err = NewClient(ClientConfig{BaseURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestCurrentUserSendsBasicAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "jane@example.com", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/rest/api/2/myself", r.URL.Path)
		writeJSON(t, w, map[string]any{"accountId": "acc-1", "displayName": "Jane"})
	})

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, User{AccountID: "acc-1", DisplayName: "Jane"}, user)
}

func TestListProjectKeys(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/project", r.URL.Path)
		writeJSON(t, w, []map[string]any{{"key": "PROJ", "name": "Project"}, {"key": "OPS"}})
	})

	keys, err := client.ListProjectKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PROJ", "OPS"}, keys)
}

func TestSearchIssuesPaginates(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("jql"), "worklogAuthor")
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))

		issues := []map[string]any{}
		if startAt == 0 {
			issues = append(issues,
				map[string]any{"key": "PROJ-1", "fields": map[string]any{"project": map[string]any{"key": "PROJ"}, "summary": "First"}},
				map[string]any{"key": "PROJ-2", "fields": map[string]any{"project": map[string]any{"key": "PROJ"}, "summary": "Second"}},
			)
		} else {
			issues = append(issues,
				map[string]any{"key": "OPS-7", "fields": map[string]any{"project": map[string]any{"key": "OPS"}, "summary": "Third"}},
			)
		}
		writeJSON(t, w, map[string]any{"startAt": startAt, "maxResults": 2, "total": 3, "issues": issues})
	})

	issues, err := client.SearchIssues(context.Background(), WorklogAuthorJQL("acc-1", time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, Issue{Key: "OPS-7", ProjectKey: "OPS", Summary: "Third"}, issues[2])
}

func TestListWorklogsDecodesRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/PROJ-5/worklog", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"startAt":    0,
			"maxResults": 1000,
			"total":      1,
			"worklogs": []map[string]any{{
				"id":               "100",
				"author":           map[string]any{"accountId": "acc-1"},
				"started":          "2026-03-02T12:34:00.000+0100",
				"timeSpentSeconds": 1800,
				"comment":          "remote note",
			}},
		})
	})

	worklogs, err := client.ListWorklogs(context.Background(), "PROJ-5")
	require.NoError(t, err)
	require.Len(t, worklogs, 1)

	got := worklogs[0]
	assert.Equal(t, "100", got.ID)
	assert.Equal(t, "PROJ-5", got.IssueKey)
	assert.Equal(t, "acc-1", got.AuthorAccountID)
	assert.Equal(t, 30*time.Minute, got.TimeSpent())
	assert.True(t, got.Started.Equal(time.Date(2026, 3, 2, 11, 34, 0, 0, time.UTC)), "started=%s", got.Started)
}

func TestAddWorklogPostsSecondsAndStart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue/PROJ-12/worklog", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.EqualValues(t, 3600, payload["timeSpentSeconds"])
		assert.Equal(t, "fixed bug", payload["comment"])
		assert.True(t, strings.HasPrefix(fmt.Sprint(payload["started"]), "2026-03-02T12:34:00.000"), "started=%v", payload["started"])

		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{"id": "200", "timeSpentSeconds": 3600, "started": payload["started"], "comment": "fixed bug"})
	})

	loc := time.FixedZone("CET", 3600)
	created, err := client.AddWorklog(context.Background(), "PROJ-12", NewWorklog{
		Started:   time.Date(2026, 3, 2, 12, 34, 0, 0, loc),
		TimeSpent: time.Hour,
		Comment:   "fixed bug",
	})
	require.NoError(t, err)
	assert.Equal(t, "200", created.ID)
	assert.Equal(t, 3600, created.TimeSpentSeconds)
}

func TestAddWorklogRejectsSubSecondDuration(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	_, err := client.AddWorklog(context.Background(), "PROJ-1", NewWorklog{TimeSpent: 0})
	require.Error(t, err)
}

func TestGetAndDeleteWorklog(t *testing.T) {
	deleted := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/PROJ-5/worklog/100", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]any{"id": "100", "timeSpentSeconds": 60, "comment": "keep me", "started": "2026-03-02T09:00:00.000+0000"})
		case http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	got, err := client.GetWorklog(context.Background(), "PROJ-5", "100")
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Comment)

	require.NoError(t, client.DeleteWorklog(context.Background(), "PROJ-5", "100"))
	assert.True(t, deleted)
}

func TestErrorsCarryStatusCode(t *testing.T) {
	status := http.StatusForbidden
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"errorMessages":["nope"]}`))
	})

	err := client.DeleteWorklog(context.Background(), "PROJ-5", "100")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsTransient(err))

	status = http.StatusServiceUnavailable
	err = client.DeleteWorklog(context.Background(), "PROJ-5", "100")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsAuthError(err))
}

func TestAPIErrorTransient(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want bool
	}{
		{name: "no response", err: &APIError{Err: errors.New("connection reset")}, want: true},
		{name: "rate limited", err: &APIError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &APIError{StatusCode: http.StatusBadGateway}, want: true},
		{name: "not found", err: &APIError{StatusCode: http.StatusNotFound}, want: false},
		{name: "canceled", err: &APIError{Err: context.Canceled}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Transient())
		})
	}
}

func TestWorklogAuthorJQL(t *testing.T) {
	got := WorklogAuthorJQL("712020:abc", time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC))
	assert.Equal(t, `worklogAuthor = "712020:abc" AND worklogDate >= "2026-03-01"`, got)
}
