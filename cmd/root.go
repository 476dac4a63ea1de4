/*
Copyright © 2025 riad@rsworld.eu

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hamsterjira/config"
	"hamsterjira/internal/logging"
	"hamsterjira/jira"
	"hamsterjira/submitter"
)

const (
	// ExitFailure covers configuration and local errors.
	ExitFailure = 1
	// ExitRemoteFailure is used when a Jira read or write failed.
	ExitRemoteFailure = 2
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hamsterjira",
	Short: "Synchronize hamster time tracking records with Jira worklogs.",
	Long: `
**********************************************
*            HAMSTER -> JIRA                 *
**********************************************

Reads the local hamster database, groups activities whose name references a
Jira issue (for example "PROJ-12 code review") by work day and issue, and
compares their total with the worklogs you booked in Jira.

When the totals differ by 10 seconds or more, all of your Jira worklogs for
that issue and day are deleted and replaced by one worklog carrying the local
total and the joined activity descriptions. Jira worklogs without a local
counterpart are deleted.

Activities that reference no known Jira project are listed at the end.

Credentials come from the environment (JIRA_SERVER_URL, JIRA_USERNAME,
JIRA_API_TOKEN), a .env file or the --jira-* flags, in that order: a variable
that is set overrides the flag.
`,
	Example: `
  # Preview what would change during the last two weeks
  hamsterjira --dry-run

  # Synchronize the last 30 days, work days starting at 04:00
  hamsterjira --max-days-past 30 --day-starts-at 4:00

  # Only consider two projects and never touch anything before March
  hamsterjira --projects ABC,OPS --first-day 2026-03-01

  # Export activities without a Jira reference
  hamsterjira --dry-run --report-output ./unmatched.xlsx
`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		if err := config.BindEnv(v); err != nil {
			return err
		}
		envFile := v.GetString(config.KeyEnvFile)
		envLoaded, err := config.LoadEnvFile(v, envFile, cmd.Flags().Changed(config.KeyEnvFile))
		if err != nil {
			return err
		}

		cfg, err := config.LoadAndValidate(v)
		if err != nil {
			return err
		}

		logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Verbose)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		if envLoaded {
			logger.Info("loaded env file", "path", envFile)
		}
		logger.Debug("configuration",
			"jira_server_url", cfg.JiraServerURL,
			"jira_username", cfg.Username,
			"jira_api_token", logging.MaskSensitive(cfg.APIToken),
			"max_days_past", cfg.MaxDaysPast,
			"day_starts_at", cfg.DayStart.String(),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSync(ctx, cfg, newSyncEnv(cmd.OutOrStdout(), logger))
	},
}

// Execute runs the root command and exits with a code describing the failure.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var apiErr *jira.APIError
	if errors.As(err, &apiErr) || errors.Is(err, submitter.ErrReplaceFailed) {
		return ExitRemoteFailure
	}
	return ExitFailure
}

func init() {
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.Flags()
	flags.String(config.KeyJiraServerURL, "", "Jira server URL (env JIRA_SERVER_URL)")
	flags.String(config.KeyJiraUsername, "", "Jira user name, usually the account e-mail (env JIRA_USERNAME)")
	flags.String(config.KeyJiraAPIToken, "", "Jira API token (env JIRA_API_TOKEN)")
	flags.Int(config.KeyMaxDaysPast, config.DefaultMaxDaysPast, "Number of days in the past to synchronize")
	flags.String(config.KeyFirstDay, "", "Ignore every worklog before this day (YYYY-MM-DD)")
	flags.String(config.KeyDayStartsAt, "5:00", "Time of day (H:MM) at which a new work day begins")
	flags.String(config.KeyProjects, "", "Comma separated Jira project keys (default: all projects visible to you)")
	flags.BoolP(config.KeyVerbose, "v", false, "Print every decision, including day/issue pairs already in sync")
	flags.Bool(config.KeyDryRun, false, "Print what would be done without changing Jira")
	flags.String(config.KeyEnvFile, config.DefaultEnvFile, "dotenv file with Jira credentials")
	flags.String(config.KeyHamsterDB, "", "Hamster database path (default $HOME/.local/share/hamster/hamster.db)")
	flags.String(config.KeyLogLevel, "info", "Minimum log level: debug, info, warn, error")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "Timeout for a single Jira request")
	flags.Bool(config.KeyDedupeComments, false, "Drop repeated descriptions when joining worklog comments")
	flags.Uint64(config.KeyRetries, config.DefaultRetries, "Retries for transient Jira failures (429, 5xx, network)")
	flags.String(config.KeyReportOutput, "", "Also write the unmatched activity report to a .csv or .xlsx file")

	flags.VisitAll(func(flag *pflag.Flag) {
		cobra.CheckErr(viper.BindPFlag(flag.Name, flag))
	})
}
