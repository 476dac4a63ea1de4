// Package ticket extracts Jira issue references from free-text activity labels.
package ticket

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NoIssue is the issue number reported for labels without a ticket reference.
const NoIssue = 0

// Ref identifies one issue as project key plus number.
type Ref struct {
	Project string
	Number  int
}

func (r Ref) Key() string {
	return fmt.Sprintf("%s-%d", r.Project, r.Number)
}

// Parser matches labels of the form "[text ending in space or colon]PROJ-123[space, colon or hyphen text]".
type Parser struct {
	prefixes []string
	pattern  *regexp.Regexp
}

// NewParser builds a parser for the given project prefixes. An empty prefix
// set produces a parser that matches nothing.
func NewParser(prefixes []string) (*Parser, error) {
	cleaned := normalizePrefixes(prefixes)
	if len(cleaned) == 0 {
		return &Parser{}, nil
	}

	quoted := make([]string, 0, len(cleaned))
	for _, prefix := range cleaned {
		quoted = append(quoted, regexp.QuoteMeta(prefix))
	}
	expr := `^(?:.*[ :])?(?P<project>` + strings.Join(quoted, "|") + `)-(?P<number>[0-9]+)(?:[ :-].*)?$`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile ticket pattern: %w", err)
	}
	return &Parser{prefixes: cleaned, pattern: pattern}, nil
}

func (p *Parser) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// Parse returns the ticket reference in label. The second value is false
// when the label names no known project.
func (p *Parser) Parse(label string) (Ref, bool) {
	if p == nil || p.pattern == nil {
		return Ref{Number: NoIssue}, false
	}
	match := p.pattern.FindStringSubmatch(label)
	if match == nil {
		return Ref{Number: NoIssue}, false
	}
	number, err := strconv.Atoi(match[p.pattern.SubexpIndex("number")])
	if err != nil {
		return Ref{Number: NoIssue}, false
	}
	return Ref{Project: match[p.pattern.SubexpIndex("project")], Number: number}, true
}

// ParseKey splits an issue key such as "PROJ-12".
func ParseKey(key string) (Ref, error) {
	trimmed := strings.TrimSpace(key)
	idx := strings.LastIndex(trimmed, "-")
	if idx <= 0 || idx == len(trimmed)-1 {
		return Ref{}, fmt.Errorf("invalid issue key %q", key)
	}
	number, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil || number < 0 {
		return Ref{}, fmt.Errorf("invalid issue number in key %q", key)
	}
	return Ref{Project: trimmed[:idx], Number: number}, nil
}

// ParseProjectList splits a comma separated project list.
func ParseProjectList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return normalizePrefixes(strings.Split(value, ","))
}

// ProjectLister returns the keys of all projects visible to the current user.
type ProjectLister interface {
	ListProjectKeys(ctx context.Context) ([]string, error)
}

// DiscoverPrefixes returns explicit when it is non-empty, otherwise the
// project keys reported by lister.
func DiscoverPrefixes(ctx context.Context, explicit []string, lister ProjectLister) ([]string, error) {
	if cleaned := normalizePrefixes(explicit); len(cleaned) > 0 {
		return cleaned, nil
	}
	keys, err := lister.ListProjectKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jira projects: %w", err)
	}
	return normalizePrefixes(keys), nil
}

// normalizePrefixes trims, deduplicates and orders longest first so that a
// short key never shadows a longer one sharing its start.
func normalizePrefixes(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		prefix := strings.TrimSpace(value)
		if prefix == "" {
			continue
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		out = append(out, prefix)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
