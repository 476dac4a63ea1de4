package worklog

import (
	"fmt"
	"sort"
	"time"

	"hamsterjira/internal/timeutil"
	"hamsterjira/ticket"
)

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Record is one normalized time interval from either the local tracker or Jira.
type Record struct {
	LogID       string
	Start       time.Time
	End         time.Time
	Duration    time.Duration
	Label       string
	Description string
	Project     string
	IssueNumber int
	Day         timeutil.Day
	Origin      Origin
}

// Matched reports whether the record carries a ticket reference.
func (r Record) Matched() bool {
	return r.Project != ""
}

func (r Record) Key() Key {
	return Key{Day: r.Day, Project: r.Project, IssueNumber: r.IssueNumber}
}

// Key groups records for reconciliation.
type Key struct {
	Day         timeutil.Day
	Project     string
	IssueNumber int
}

func (k Key) IssueKey() string {
	return ticket.Ref{Project: k.Project, Number: k.IssueNumber}.Key()
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s", k.Day, k.IssueKey())
}

func (k Key) Less(other Key) bool {
	if cmp := k.Day.Compare(other.Day); cmp != 0 {
		return cmp < 0
	}
	if k.Project != other.Project {
		return k.Project < other.Project
	}
	return k.IssueNumber < other.IssueNumber
}

// Union concatenates record sets and orders the result by day, then start.
func Union(sets ...[]Record) []Record {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	out := make([]Record, 0, total)
	for _, set := range sets {
		out = append(out, set...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].Day.Compare(out[j].Day); cmp != 0 {
			return cmp < 0
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// FromDay drops records whose logical day is before first. A zero first keeps everything.
func FromDay(records []Record, first timeutil.Day) []Record {
	if first.IsZero() {
		return append([]Record(nil), records...)
	}
	out := make([]Record, 0, len(records))
	for _, record := range records {
		if record.Day.Before(first) {
			continue
		}
		out = append(out, record)
	}
	return out
}

// Group is the local and remote share of one key.
type Group struct {
	Key    Key
	Local  []Record
	Remote []Record
}

func (g Group) LocalTotal() time.Duration {
	return sumDurations(g.Local)
}

func (g Group) RemoteTotal() time.Duration {
	return sumDurations(g.Remote)
}

// Index groups matched records by key in a single pass. Unmatched records are skipped.
func Index(records []Record) []Group {
	byKey := make(map[Key]*Group)
	keys := make([]Key, 0, 64)
	for _, record := range records {
		if !record.Matched() {
			continue
		}
		key := record.Key()
		group, ok := byKey[key]
		if !ok {
			group = &Group{Key: key}
			byKey[key] = group
			keys = append(keys, key)
		}
		switch record.Origin {
		case OriginLocal:
			group.Local = append(group.Local, record)
		case OriginRemote:
			group.Remote = append(group.Remote, record)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	out := make([]Group, 0, len(keys))
	for _, key := range keys {
		out = append(out, *byKey[key])
	}
	return out
}

func sumDurations(records []Record) time.Duration {
	total := time.Duration(0)
	for _, record := range records {
		total += record.Duration
	}
	return total
}
