package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"hamsterjira/internal/timeutil"
	"hamsterjira/worklog"
)

// DayGroup holds the unmatched records of one logical day in record order.
type DayGroup struct {
	Day     timeutil.Day
	Records []worklog.Record
}

// UnmatchedReport lists the records that carry no ticket reference.
type UnmatchedReport struct {
	Groups      []DayGroup
	FlaggedDays []timeutil.Day
}

func (r UnmatchedReport) Total() int {
	total := 0
	for _, group := range r.Groups {
		total += len(group.Records)
	}
	return total
}

func (r UnmatchedReport) Empty() bool {
	return len(r.Groups) == 0
}

// Records returns the unmatched records flattened in report order.
func (r UnmatchedReport) Records() []worklog.Record {
	out := make([]worklog.Record, 0, r.Total())
	for _, group := range r.Groups {
		out = append(out, group.Records...)
	}
	return out
}

// BuildUnmatchedReport groups every record without a project by day.
// Records are expected in union order, so days come out ascending.
func BuildUnmatchedReport(records []worklog.Record) UnmatchedReport {
	report := UnmatchedReport{}
	positions := make(map[timeutil.Day]int)

	for _, record := range records {
		if record.Matched() {
			continue
		}
		idx, ok := positions[record.Day]
		if !ok {
			idx = len(report.Groups)
			positions[record.Day] = idx
			report.Groups = append(report.Groups, DayGroup{Day: record.Day})
			report.FlaggedDays = append(report.FlaggedDays, record.Day)
		}
		report.Groups[idx].Records = append(report.Groups[idx].Records, record)
	}

	return report
}

// WriteUnmatchedText prints the report for a terminal.
func WriteUnmatchedText(w io.Writer, report UnmatchedReport) error {
	if report.Empty() {
		_, err := fmt.Fprintln(w, "All worklogs matched a Jira project.")
		return err
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("\n", 3))
	fmt.Fprintf(&b, "ATTENTION: %d WORKLOG ITEMS HAVE NO PROJECT ASSIGNED:\n", report.Total())
	for _, group := range report.Groups {
		fmt.Fprintf(&b, "%s\n", group.Day)
		for _, record := range group.Records {
			fmt.Fprintf(
				&b,
				"  %s-%s  %8s  %s\n",
				record.Start.Format("15:04"),
				record.End.Format("15:04"),
				formatDuration(record.Duration),
				describe(record),
			)
		}
	}

	b.WriteString("\n!!! ON SOME DAYS THERE ARE WORKLOGS WITH NO PROJECTS ASSIGNED !!!\n")
	days := make([]string, 0, len(report.FlaggedDays))
	for _, day := range report.FlaggedDays {
		days = append(days, day.String())
	}
	b.WriteString(strings.Join(days, ", "))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func describe(record worklog.Record) string {
	label := strings.TrimSpace(record.Label)
	if label == "" {
		label = "(no activity)"
	}
	description := strings.TrimSpace(record.Description)
	if description == "" {
		return label
	}
	return label + ": " + strings.ReplaceAll(description, "\n", " ")
}

func formatDuration(value time.Duration) string {
	value = value.Round(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(value.Hours()), int(value.Minutes())%60)
}
