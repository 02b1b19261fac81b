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

// analyze groups the surviving content by subtask and produces one analysis
// note per subtask: a summary of findings, contradictions between sources
// and open questions. Subtasks with no surviving sources get an explicit
// no-sources note so synthesis can say so instead of inventing material.
func (o *Orchestrator) analyze(ctx context.Context, logger *slog.Logger, plan *model.TaskPlan, eval *model.Evaluation) (*model.Analysis, error) {
	kept := make(map[string][]model.EvaluatedItem)
	for _, it := range eval.Items {
		if it.Keep {
			kept[it.SubtaskID] = append(kept[it.SubtaskID], it)
		}
	}

	analysis := &model.Analysis{
		Notes: make([]model.SubtaskAnalysis, len(plan.Subtasks)),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.concurrency)
	for i, sub := range plan.Subtasks {
		i, sub := i, sub
		eg.Go(func() error {
			analysis.Notes[i] = o.analyzeSubtask(egCtx, logger, sub, kept[sub.ID])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return analysis, nil
}

func (o *Orchestrator) analyzeSubtask(ctx context.Context, logger *slog.Logger, sub model.Subtask, items []model.EvaluatedItem) model.SubtaskAnalysis {
	note := model.SubtaskAnalysis{
		SubtaskID:   sub.ID,
		Title:       sub.Title,
		SourceCount: len(items),
	}

	if len(items) == 0 {
		note.Summary = fmt.Sprintf("No sources were found for %q; this part is based on general knowledge only.", sub.Title)
		note.OpenQuestions = []string{"No source material was available for " + sub.Title + "."}
		return note
	}

	if !o.llm.IsConfigured() {
		note.Summary = fallbackSummary(sub, items)
		return note
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subtask: %s\nSources:\n", sub.Title)
	for i, it := range items {
		fmt.Fprintf(&b, "[%d] %s — %s\n%s\n\n", i+1, it.Title, it.URL, truncate(it.Content, 600))
	}
	b.WriteString(`Summarize the findings, note contradictions between sources, and list open questions. Reply as JSON:
{"summary": "...", "contradictions": ["..."], "openQuestions": ["..."]}`)

	raw, err := o.llm.ChatCompletion(ctx, "You analyze research material. Reply with a single JSON object only.", b.String(),
		client.ChatOptions{Temperature: 0.3, MaxTokens: 1200})
	if err != nil {
		logger.Warn("analysis call failed, using extractive summary", "subtask", sub.ID, "error", err)
		note.Summary = fallbackSummary(sub, items)
		return note
	}

	var parsed struct {
		Summary        string   `json:"summary"`
		Contradictions []string `json:"contradictions"`
		OpenQuestions  []string `json:"openQuestions"`
	}
	if err := json.Unmarshal([]byte(client.StripJSONFences(raw)), &parsed); err != nil || parsed.Summary == "" {
		logger.Warn("analysis note did not parse, using extractive summary", "subtask", sub.ID)
		note.Summary = fallbackSummary(sub, items)
		return note
	}
	note.Summary = parsed.Summary
	note.Contradictions = parsed.Contradictions
	note.OpenQuestions = parsed.OpenQuestions
	return note
}

// fallbackSummary stitches the strongest snippets together verbatim.
func fallbackSummary(sub model.Subtask, items []model.EvaluatedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Findings on %s from %d sources. ", sub.Title, len(items))
	for _, it := range items {
		b.WriteString(truncate(it.Content, 300))
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}
