package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

const scoreThreshold = 0.5

// evaluate scores every collected item on relevance and quality and drops
// the weak ones, keeping at least one item per subtask when possible. A
// rubric that fails to parse keeps its item: skipping an entry is cheaper
// than losing a source to a malformed reply.
func (o *Orchestrator) evaluate(ctx context.Context, logger *slog.Logger, results *model.SearchResults) (*model.Evaluation, error) {
	eval := &model.Evaluation{
		Items:     make([]model.EvaluatedItem, len(results.AllContent)),
		Threshold: scoreThreshold,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.concurrency)
	for i, item := range results.AllContent {
		i, item := i, item
		eg.Go(func() error {
			rel, qual := o.scoreItem(egCtx, logger, item)
			eval.Items[i] = model.EvaluatedItem{
				ContentItem: item,
				Relevance:   rel,
				Quality:     qual,
				Keep:        (rel+qual)/2 >= scoreThreshold,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Keep a per-subtask minimum: the best item of a subtask survives even
	// below threshold, so analysis never starts from an empty group that
	// had sources.
	best := make(map[string]int)
	for i, it := range eval.Items {
		b, ok := best[it.SubtaskID]
		if !ok || it.Relevance+it.Quality > eval.Items[b].Relevance+eval.Items[b].Quality {
			best[it.SubtaskID] = i
		}
	}
	for _, i := range best {
		eval.Items[i].Keep = true
	}

	for _, it := range eval.Items {
		if it.Keep {
			eval.Kept++
		} else {
			eval.Dropped++
		}
	}
	return eval, nil
}

func (o *Orchestrator) scoreItem(ctx context.Context, logger *slog.Logger, item model.ContentItem) (float64, float64) {
	if !o.llm.IsConfigured() {
		return heuristicScore(item)
	}

	system := "You grade search results for a research pipeline. Reply with a single JSON object only."
	user := fmt.Sprintf(`Query: %s
Subtask: %s
Title: %s
Content: %s

Grade relevance (to the subtask) and quality (substance, credibility) from 0.0 to 1.0:
{"relevance": 0.0, "quality": 0.0}`, item.SearchQuery, item.SubtaskTitle, item.Title, truncate(item.Content, 800))

	raw, err := o.llm.ChatCompletion(ctx, system, user, client.ChatOptions{Temperature: 0.1, MaxTokens: 100})
	if err != nil {
		logger.Warn("evaluation call failed, keeping item", "url", item.URL, "error", err)
		return heuristicScore(item)
	}

	var rubric struct {
		Relevance float64 `json:"relevance"`
		Quality   float64 `json:"quality"`
	}
	if err := json.Unmarshal([]byte(client.StripJSONFences(raw)), &rubric); err != nil {
		logger.Warn("evaluation rubric did not parse, keeping item", "url", item.URL)
		return heuristicScore(item)
	}
	return clamp01(rubric.Relevance), clamp01(rubric.Quality)
}

// heuristicScore approximates the rubric from snippet length and term
// overlap with the originating query.
func heuristicScore(item model.ContentItem) (float64, float64) {
	quality := 0.4
	if len(item.Content) > 200 {
		quality = 0.7
	}
	relevance := 0.4
	content := strings.ToLower(item.Title + " " + item.Content)
	terms := strings.Fields(strings.ToLower(item.SearchQuery))
	matched := 0
	for _, t := range terms {
		if strings.Contains(content, t) {
			matched++
		}
	}
	if len(terms) > 0 {
		relevance = 0.3 + 0.7*float64(matched)/float64(len(terms))
	}
	return relevance, quality
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	cut := model.TruncateRunes(s, n)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}
