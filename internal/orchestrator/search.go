package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xunlong/api/internal/model"
)

// Global per-job cap on collected content, independent of subtask count.
const maxContentPerJob = 60

// runSearch fans the plan's queries out to the search collaborator with
// bounded concurrency, deduplicates by URL and groups hits by subtask.
// Search is best-effort: a failed query only logs; zero hits is a valid
// outcome the later stages must tolerate.
func (o *Orchestrator) runSearch(ctx context.Context, logger *slog.Logger, plan *model.TaskPlan, cfg taskConfig) (*model.SearchResults, error) {
	results := &model.SearchResults{
		BySubtask: make(map[string][]model.ContentItem),
	}
	var mu sync.Mutex
	seen := make(map[string]bool)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.concurrency)

	for _, sub := range plan.Subtasks {
		for _, query := range sub.SearchQueries {
			sub, query := sub, query
			eg.Go(func() error {
				hits, err := o.search.Search(egCtx, query, cfg.maxResults)
				if err != nil {
					logger.Warn("search query failed", "query", query, "error", err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, hit := range hits {
					if seen[hit.URL] || len(results.AllContent) >= maxContentPerJob {
						continue
					}
					seen[hit.URL] = true
					item := model.ContentItem{
						Title:        hit.Title,
						URL:          hit.URL,
						Content:      hit.Snippet,
						Source:       hit.Source,
						SearchQuery:  query,
						SubtaskID:    sub.ID,
						SubtaskTitle: sub.Title,
					}
					results.AllContent = append(results.AllContent, item)
					results.BySubtask[sub.ID] = append(results.BySubtask[sub.ID], item)
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results.TotalHits = len(results.AllContent)
	return results, nil
}
