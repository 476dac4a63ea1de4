package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultHamsterPath is the hamster database location relative to $HOME.
const DefaultHamsterPath = ".local/share/hamster/hamster.db"

var ErrHamsterDBNotFound = errors.New("hamster database not found")

var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

// Fact is one recorded interval joined with its activity name.
// End is nil for the activity that is still running.
type Fact struct {
	ID           int64
	Start        time.Time
	End          *time.Time
	ActivityName string
	Description  string
}

// HamsterStore reads facts from a hamster SQLite database opened read-only.
type HamsterStore struct {
	db       *sql.DB
	location *time.Location
}

// ResolveHamsterPath returns override when set, otherwise the default path below home.
func ResolveHamsterPath(override, home string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if strings.TrimSpace(home) == "" {
		return "", errors.New("HOME is not set; pass --hamster-db")
	}
	return filepath.Join(home, DefaultHamsterPath), nil
}

// OpenHamster opens path read-only. Naive timestamps are interpreted in location.
func OpenHamster(path string, location *time.Location) (*HamsterStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrHamsterDBNotFound, path)
		}
		return nil, fmt.Errorf("stat hamster db: %w", err)
	}
	if location == nil {
		location = time.Local
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open hamster db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping hamster db: %w", err)
	}

	return &HamsterStore{db: db, location: location}, nil
}

func (s *HamsterStore) Close() error {
	return s.db.Close()
}

// ListFacts returns all facts ordered by start time.
func (s *HamsterStore) ListFacts(ctx context.Context) ([]Fact, error) {
	const query = `
SELECT
	facts.id,
	CAST(facts.start_time AS TEXT),
	CAST(facts.end_time AS TEXT),
	activities.name,
	COALESCE(facts.description, '')
FROM facts
JOIN activities ON facts.activity_id = activities.id
ORDER BY facts.start_time, facts.id;
`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := make([]Fact, 0, 256)
	for rows.Next() {
		var (
			fact     Fact
			startRaw string
			endRaw   sql.NullString
		)
		if err := rows.Scan(&fact.ID, &startRaw, &endRaw, &fact.ActivityName, &fact.Description); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}

		fact.Start, err = s.parseTimestamp(startRaw)
		if err != nil {
			return nil, fmt.Errorf("fact %d: %w", fact.ID, err)
		}
		if endRaw.Valid && strings.TrimSpace(endRaw.String) != "" {
			end, err := s.parseTimestamp(endRaw.String)
			if err != nil {
				return nil, fmt.Errorf("fact %d: %w", fact.ID, err)
			}
			fact.End = &end
		}

		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}

	return facts, nil
}

func (s *HamsterStore) parseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, value, s.location); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
}
