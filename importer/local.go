package importer

import (
	"context"
	"fmt"
	"strconv"

	"hamsterjira/storage"
	"hamsterjira/ticket"
	"hamsterjira/worklog"
)

// FactSource provides hamster facts.
type FactSource interface {
	ListFacts(ctx context.Context) ([]storage.Fact, error)
}

type LocalResult struct {
	FactsRead      int
	RunningSkipped int
	InvalidSkipped int
	BeforeCutoff   int
	Records        []worklog.Record
}

// LoadLocal reads every fact from source and keeps those starting after the cutoff.
func LoadLocal(ctx context.Context, source FactSource, parser *ticket.Parser, options Options) (*LocalResult, error) {
	facts, err := source.ListFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hamster facts: %w", err)
	}

	logger := options.logger()
	loc := options.location()
	result := &LocalResult{FactsRead: len(facts), Records: make([]worklog.Record, 0, len(facts))}
	for _, fact := range facts {
		if fact.End == nil {
			result.RunningSkipped++
			logger.Debug("skipping running hamster activity", "fact_id", fact.ID, "activity", fact.ActivityName)
			continue
		}

		start := fact.Start.In(loc)
		end := fact.End.In(loc)
		if end.Before(start) {
			result.InvalidSkipped++
			logger.Warn("skipping hamster fact ending before it starts", "fact_id", fact.ID, "start", start, "end", end)
			continue
		}
		if !start.After(options.Cutoff) {
			result.BeforeCutoff++
			continue
		}

		ref, _ := parser.Parse(fact.ActivityName)
		result.Records = append(result.Records, worklog.Record{
			LogID:       strconv.FormatInt(fact.ID, 10),
			Start:       start,
			End:         end,
			Duration:    end.Sub(start),
			Label:       fact.ActivityName,
			Description: fact.Description,
			Project:     ref.Project,
			IssueNumber: ref.Number,
			Day:         options.DayStart.LogicalDay(start),
			Origin:      worklog.OriginLocal,
		})
	}

	return result, nil
}
