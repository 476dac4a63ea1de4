package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"hamsterjira/config"
	"hamsterjira/importer"
	"hamsterjira/internal/timeutil"
	"hamsterjira/jira"
	"hamsterjira/output"
	"hamsterjira/reconcile"
	"hamsterjira/storage"
	"hamsterjira/submitter"
	"hamsterjira/ticket"
	"hamsterjira/worklog"
)

const cutoffLayout = "2006-01-02 15:04"

type localSource interface {
	importer.FactSource
	Close() error
}

// syncEnv carries the collaborators of one sync run so tests can swap them.
type syncEnv struct {
	out       io.Writer
	logger    *slog.Logger
	now       func() time.Time
	location  *time.Location
	home      string
	newClient func(jira.ClientConfig) (jira.Client, error)
	openLocal func(path string, location *time.Location) (localSource, error)
}

func newSyncEnv(out io.Writer, logger *slog.Logger) syncEnv {
	home, _ := os.UserHomeDir()
	return syncEnv{
		out:      out,
		logger:   logger,
		now:      time.Now,
		location: time.Local,
		home:     home,
		newClient: func(cfg jira.ClientConfig) (jira.Client, error) {
			client, err := jira.NewClient(cfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		openLocal: func(path string, location *time.Location) (localSource, error) {
			store, err := storage.OpenHamster(path, location)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
	}
}

func runSync(ctx context.Context, cfg *config.Config, env syncEnv) error {
	if cfg.DryRun {
		fmt.Fprintln(env.out, "Dry run: just printing what would be done, Jira stays unchanged.")
	}

	client, err := env.newClient(jira.ClientConfig{
		BaseURL:  cfg.JiraServerURL,
		Username: cfg.Username,
		APIToken: cfg.APIToken,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("connect to jira: %w", err)
	}
	env.logger.Debug("authenticated", "account_id", user.AccountID, "display_name", user.DisplayName)

	prefixes, err := ticket.DiscoverPrefixes(ctx, cfg.Projects, client)
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		env.logger.Warn("no jira projects known; every activity will be reported as unmatched")
	}
	parser, err := ticket.NewParser(prefixes)
	if err != nil {
		return err
	}
	env.logger.Debug("ticket prefixes", "prefixes", strings.Join(parser.Prefixes(), ","))

	cutoff := timeutil.Cutoff(env.now().In(env.location), cfg.MaxDaysPast, cfg.DayStart)
	fmt.Fprintln(env.out, "Initialization ok")
	fmt.Fprintf(env.out, "Synchronizing worklogs from %s onwards\n", cutoff.Format(cutoffLayout))

	options := importer.Options{
		DayStart: cfg.DayStart,
		Cutoff:   cutoff,
		Location: env.location,
		Logger:   env.logger,
	}

	local, err := loadLocal(ctx, cfg, env, parser, options)
	if err != nil {
		return err
	}
	env.logger.Info("loaded hamster facts",
		"read", local.FactsRead,
		"kept", len(local.Records),
		"running", local.RunningSkipped,
		"invalid", local.InvalidSkipped,
	)

	remote, err := importer.LoadRemote(ctx, client, user.AccountID, options)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Parsed %d worklogs from %d issues\n", len(remote.Records), remote.IssuesSearched)

	records := worklog.Union(local.Records, remote.Records)
	if !cfg.FirstDay.IsZero() {
		fmt.Fprintf(env.out, "Removing worklogs from time before %s\n", cfg.FirstDay)
		records = worklog.FromDay(records, cfg.FirstDay)
	}

	applier := submitter.NewService(client, submitter.Config{
		Retries: cfg.Retries,
		Logger:  env.logger,
	})
	result, err := reconcile.Run(ctx, records, applier, reconcile.Options{
		DryRun:         cfg.DryRun,
		DedupeComments: cfg.DedupeComments,
		Location:       env.location,
		Logger:         env.logger,
	})
	if err != nil {
		return err
	}
	printResult(env.out, result, cfg.DryRun)

	report := output.BuildUnmatchedReport(records)
	if err := output.WriteUnmatchedText(env.out, report); err != nil {
		return fmt.Errorf("print unmatched report: %w", err)
	}
	if cfg.ReportOutput != "" {
		writer, err := output.WriterForPath(cfg.ReportOutput)
		if err != nil {
			return err
		}
		if err := writer.Write(cfg.ReportOutput, report); err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Wrote unmatched report to %s\n", cfg.ReportOutput)
	}

	fmt.Fprintf(env.out, "Synchronization of worklogs since %s is finished\n", cutoff.Format(cutoffLayout))
	return nil
}

func loadLocal(ctx context.Context, cfg *config.Config, env syncEnv, parser *ticket.Parser, options importer.Options) (*importer.LocalResult, error) {
	path, err := storage.ResolveHamsterPath(cfg.HamsterDB, env.home)
	if err != nil {
		return nil, err
	}
	store, err := env.openLocal(path, env.location)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return importer.LoadLocal(ctx, store, parser, options)
}

func printResult(out io.Writer, result *reconcile.Result, dryRun bool) {
	if dryRun {
		fmt.Fprintf(
			out,
			"Checked %d day/issue pairs: %d in sync, %d out of sync (would delete %d and create %d worklogs)\n",
			result.Triples,
			result.InSync,
			result.OutOfSync,
			result.PlannedDeletes,
			result.PlannedCreates,
		)
		return
	}
	fmt.Fprintf(
		out,
		"Checked %d day/issue pairs: %d in sync, %d updated (deleted %d and created %d worklogs)\n",
		result.Triples,
		result.InSync,
		result.OutOfSync,
		result.WorklogsDeleted,
		result.WorklogsCreated,
	)
}
