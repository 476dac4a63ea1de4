package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hamsterjira/internal/classify"
	"hamsterjira/internal/logging"
	"hamsterjira/jira"
	"hamsterjira/worklog"
)

// Replacement worklogs start at this time of day.
const (
	replacementHour   = 12
	replacementMinute = 34
)

const commentSeparator = "\n\n"

// Action is the outcome of comparing one day/issue pair.
type Action struct {
	Key         worklog.Key
	Decision    classify.Decision
	LocalTotal  time.Duration
	RemoteTotal time.Duration
	// Delete lists the remote worklog ids to remove.
	Delete []string
	// Create is nil when nothing replaces the deleted worklogs.
	Create *jira.NewWorklog
}

func (a Action) IssueKey() string {
	return a.Key.IssueKey()
}

// Applied reports what an Applier changed remotely.
type Applied struct {
	Deleted int
	Created bool
}

// Applier performs the remote side of an out-of-sync action.
type Applier interface {
	Apply(ctx context.Context, action Action) (Applied, error)
}

type Options struct {
	DryRun         bool
	DedupeComments bool
	Location       *time.Location
	Logger         *slog.Logger
}

type Result struct {
	Triples         int
	InSync          int
	OutOfSync       int
	PlannedDeletes  int
	PlannedCreates  int
	WorklogsDeleted int
	WorklogsCreated int
}

// Plan compares local and remote totals for every matched day/issue pair.
// Records without a project are left to the unmatched report.
func Plan(records []worklog.Record, options Options) []Action {
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}

	groups := worklog.Index(records)
	actions := make([]Action, 0, len(groups))
	for _, group := range groups {
		localTotal := group.LocalTotal()
		remoteTotal := group.RemoteTotal()
		action := Action{
			Key:         group.Key,
			Decision:    classify.Decide(localTotal, remoteTotal, len(group.Local) > 0),
			LocalTotal:  localTotal,
			RemoteTotal: remoteTotal,
		}
		if action.Decision == classify.InSync {
			actions = append(actions, action)
			continue
		}

		action.Delete = make([]string, 0, len(group.Remote))
		for _, remote := range group.Remote {
			action.Delete = append(action.Delete, remote.LogID)
		}
		if action.Decision == classify.Replace && localTotal >= time.Second {
			action.Create = &jira.NewWorklog{
				Started:   group.Key.Day.At(replacementHour, replacementMinute, loc),
				TimeSpent: localTotal.Truncate(time.Second),
				Comment:   joinDescriptions(group.Local, options.DedupeComments),
			}
		}
		actions = append(actions, action)
	}
	return actions
}

// Run plans and, unless dry-running, applies every out-of-sync action in order.
// The first remote failure aborts the run; earlier actions stay applied.
func Run(ctx context.Context, records []worklog.Record, applier Applier, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	actions := Plan(records, options)
	result := &Result{Triples: len(actions)}
	for _, action := range actions {
		issueKey := action.IssueKey()
		if action.Decision == classify.InSync {
			result.InSync++
			logger.Debug("worklogs are in sync", "day", action.Key.Day.String(), "issue", issueKey)
			continue
		}

		result.OutOfSync++
		result.PlannedDeletes += len(action.Delete)
		logger.Info("times differ",
			"day", action.Key.Day.String(),
			"issue", issueKey,
			"jira", action.RemoteTotal,
			"hamster", action.LocalTotal,
			"decision", action.Decision.String(),
		)
		for _, id := range action.Delete {
			logger.Info("deleting worklog", "issue", issueKey, "worklog_id", id, "dry_run", options.DryRun)
		}
		if action.Create != nil {
			result.PlannedCreates++
			logger.Info("adding worklog",
				"issue", issueKey,
				"time_spent", action.Create.TimeSpent,
				"started", action.Create.Started.Format(time.RFC3339),
				"comment", action.Create.Comment,
				"dry_run", options.DryRun,
			)
		}

		if options.DryRun {
			continue
		}

		applied, err := applier.Apply(ctx, action)
		result.WorklogsDeleted += applied.Deleted
		if applied.Created {
			result.WorklogsCreated++
		}
		if err != nil {
			return result, fmt.Errorf("reconcile %s: %w", action.Key, err)
		}
	}
	return result, nil
}

func joinDescriptions(records []worklog.Record, dedupe bool) string {
	seen := make(map[string]struct{}, len(records))
	parts := make([]string, 0, len(records))
	for _, record := range records {
		description := record.Description
		if strings.TrimSpace(description) == "" {
			continue
		}
		if dedupe {
			if _, ok := seen[description]; ok {
				continue
			}
			seen[description] = struct{}{}
		}
		parts = append(parts, description)
	}
	return strings.Join(parts, commentSeparator)
}
