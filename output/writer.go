package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"hamsterjira/worklog"
)

type Writer interface {
	Write(path string, report UnmatchedReport) error
}

var reportHeaders = []string{"Day", "StartDateTime", "EndDateTime", "DurationMinutes", "Activity", "Description", "Origin"}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriterForPath picks the writer from the file extension.
func WriterForPath(path string) (Writer, error) {
	return WriterForFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

func reportRow(record worklog.Record) []string {
	return []string{
		record.Day.String(),
		record.Start.Format(time.RFC3339),
		record.End.Format(time.RFC3339),
		fmt.Sprintf("%.0f", record.Duration.Minutes()),
		record.Label,
		record.Description,
		string(record.Origin),
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
