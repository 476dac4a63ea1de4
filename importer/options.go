// Package importer normalizes hamster facts and Jira worklogs into worklog records.
package importer

import (
	"log/slog"
	"time"

	"hamsterjira/internal/logging"
	"hamsterjira/internal/timeutil"
)

// Options are shared by the local and remote normalizers.
type Options struct {
	DayStart timeutil.DayStart
	// Cutoff keeps only records starting strictly after it.
	Cutoff   time.Time
	Location *time.Location
	Logger   *slog.Logger
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}
