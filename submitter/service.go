package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hamsterjira/internal/logging"
	"hamsterjira/jira"
	"hamsterjira/reconcile"
)

// ErrReplaceFailed means the replacement worklog could not be created after the
// old worklogs were deleted. The deleted worklogs were restored when possible.
var ErrReplaceFailed = errors.New("replacement worklog could not be created")

// MutationClient is the write side of the Jira client. ListWorklogs is used
// to check whether a create whose response was lost went through.
type MutationClient interface {
	ListWorklogs(ctx context.Context, issueKey string) ([]jira.Worklog, error)
	GetWorklog(ctx context.Context, issueKey, worklogID string) (jira.Worklog, error)
	DeleteWorklog(ctx context.Context, issueKey, worklogID string) error
	AddWorklog(ctx context.Context, issueKey string, worklog jira.NewWorklog) (jira.Worklog, error)
}

type Config struct {
	// Retries is the number of extra attempts for transient failures.
	Retries         uint64
	InitialInterval time.Duration
	Logger          *slog.Logger
}

// Service applies reconcile actions to Jira, one call at a time.
type Service struct {
	client          MutationClient
	retries         uint64
	initialInterval time.Duration
	logger          *slog.Logger
}

func NewService(client MutationClient, cfg Config) *Service {
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		client:          client,
		retries:         cfg.Retries,
		initialInterval: interval,
		logger:          logger,
	}
}

// Apply deletes the action's remote worklogs and writes the replacement.
// Delete and create form one step: if any part fails after a deletion, the
// deleted worklogs are written back from their snapshots. Worklogs already
// gone from Jira are skipped.
func (s *Service) Apply(ctx context.Context, action reconcile.Action) (reconcile.Applied, error) {
	issueKey := action.IssueKey()
	applied := reconcile.Applied{}

	snapshots := make([]jira.Worklog, 0, len(action.Delete))
	for _, id := range action.Delete {
		var snapshot jira.Worklog
		err := s.retry(ctx, "get worklog", func() error {
			var err error
			snapshot, err = s.client.GetWorklog(ctx, issueKey, id)
			return err
		})
		if jira.IsNotFound(err) {
			s.logger.Warn("worklog already gone", "issue", issueKey, "worklog_id", id)
			continue
		}
		if err != nil {
			return applied, fmt.Errorf("snapshot worklog %s of %s: %w", id, issueKey, err)
		}
		snapshots = append(snapshots, snapshot)
	}

	deleted := make([]jira.Worklog, 0, len(snapshots))
	for _, snapshot := range snapshots {
		gone := false
		err := s.retry(ctx, "delete worklog", func() error {
			err := s.client.DeleteWorklog(ctx, issueKey, snapshot.ID)
			if jira.IsNotFound(err) {
				gone = true
				return nil
			}
			return err
		})
		if err != nil {
			restoreErr := s.restore(ctx, issueKey, deleted)
			if restoreErr == nil {
				applied.Deleted = 0
			}
			return applied, errors.Join(fmt.Errorf("delete worklog %s of %s: %w", snapshot.ID, issueKey, err), restoreErr)
		}
		if gone {
			s.logger.Warn("worklog already gone", "issue", issueKey, "worklog_id", snapshot.ID)
			continue
		}
		deleted = append(deleted, snapshot)
		applied.Deleted++
		s.logger.Debug("deleted worklog", "issue", issueKey, "worklog_id", snapshot.ID)
	}

	if action.Create == nil {
		return applied, nil
	}

	created, err := s.create(ctx, "add worklog", issueKey, *action.Create)
	if err != nil {
		restoreErr := s.restore(ctx, issueKey, deleted)
		if restoreErr == nil {
			applied.Deleted = 0
		}
		return applied, errors.Join(fmt.Errorf("%w for %s: %w", ErrReplaceFailed, issueKey, err), restoreErr)
	}
	applied.Created = true
	s.logger.Debug("added worklog", "issue", issueKey, "worklog_id", created.ID, "time_spent", action.Create.TimeSpent)
	return applied, nil
}

func (s *Service) restore(ctx context.Context, issueKey string, deleted []jira.Worklog) error {
	var errs []error
	for _, snapshot := range deleted {
		if snapshot.TimeSpentSeconds <= 0 {
			continue
		}
		_, err := s.create(ctx, "restore worklog", issueKey, jira.NewWorklog{
			Started:   snapshot.Started,
			TimeSpent: snapshot.TimeSpent(),
			Comment:   snapshot.Comment,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("restore worklog %s of %s: %w", snapshot.ID, issueKey, err))
			continue
		}
		s.logger.Warn("restored deleted worklog", "issue", issueKey, "worklog_id", snapshot.ID)
	}
	return errors.Join(errs...)
}

// create adds a worklog. Creating is not idempotent: after a transient
// failure the issue is listed again and a worklog matching the payload
// counts as created, so a lost response never books the time twice.
func (s *Service) create(ctx context.Context, op, issueKey string, worklog jira.NewWorklog) (jira.Worklog, error) {
	var (
		created   jira.Worklog
		attempted bool
	)
	err := s.retry(ctx, op, func() error {
		if attempted {
			existing, err := s.client.ListWorklogs(ctx, issueKey)
			if err != nil {
				return err
			}
			if match, ok := findCreated(existing, worklog); ok {
				s.logger.Warn("worklog was created despite the failed response", "op", op, "issue", issueKey, "worklog_id", match.ID)
				created = match
				return nil
			}
		}
		attempted = true
		var err error
		created, err = s.client.AddWorklog(ctx, issueKey, worklog)
		return err
	})
	return created, err
}

func findCreated(existing []jira.Worklog, worklog jira.NewWorklog) (jira.Worklog, bool) {
	started := worklog.Started.Truncate(time.Second)
	seconds := int(worklog.TimeSpent / time.Second)
	for _, entry := range existing {
		if entry.TimeSpentSeconds == seconds &&
			entry.Comment == worklog.Comment &&
			entry.Started.Truncate(time.Second).Equal(started) {
			return entry, true
		}
	}
	return jira.Worklog{}, false
}

func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !jira.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, retryPolicy, func(err error, wait time.Duration) {
		s.logger.Warn("retrying jira call", "op", op, "error", err, "wait", wait)
	})
}
