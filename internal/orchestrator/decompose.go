package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

// decompose turns the query into a structured task plan. Reports decompose
// by topic dimension, fiction into plot beats plus world-building queries,
// ppt into a slide outline. When the LLM is unavailable or unparseable the
// heuristic plan below is used instead.
func (o *Orchestrator) decompose(ctx context.Context, logger *slog.Logger, task *model.Task, cfg taskConfig) (*model.TaskPlan, error) {
	if !o.llm.IsConfigured() {
		logger.Info("decompose using heuristic plan", "fallback", true)
		return heuristicPlan(task), nil
	}

	system := "You decompose research and writing tasks into subtasks. Reply with a single JSON object only."
	raw, err := o.llm.ChatCompletion(ctx, system, decomposePrompt(task, cfg), client.ChatOptions{Temperature: 0.4, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	var plan model.TaskPlan
	if err := json.Unmarshal([]byte(client.StripJSONFences(raw)), &plan); err != nil || len(plan.Subtasks) == 0 {
		logger.Warn("decomposition did not parse, using heuristic plan", "fallback", true)
		return heuristicPlan(task), nil
	}

	for i := range plan.Subtasks {
		if plan.Subtasks[i].ID == "" {
			plan.Subtasks[i].ID = fmt.Sprintf("t%d", i+1)
		}
		if len(plan.Subtasks[i].SearchQueries) == 0 {
			plan.Subtasks[i].SearchQueries = []string{plan.Subtasks[i].Title}
		}
	}
	return &plan, nil
}

func decomposePrompt(task *model.Task, cfg taskConfig) string {
	var b strings.Builder
	switch task.Type {
	case model.TaskTypeFiction:
		fmt.Fprintf(&b, "Plan a %s %s story: %s\n", cfg.fiction.Length, cfg.fiction.Genre, task.Query)
		b.WriteString("Decompose into 4-6 plot beats plus world-building research, each with 1-3 search queries for background material.\n")
	case model.TaskTypePPT:
		fmt.Fprintf(&b, "Plan a presentation about: %s\n", task.Query)
		b.WriteString("Decompose into an ordered slide outline of 4-8 topics, each with 1-2 search queries.\n")
	default:
		fmt.Fprintf(&b, "Plan a %s research report (depth: %s): %s\n", cfg.report.ReportType, cfg.searchDepth, task.Query)
		b.WriteString("Decompose into 3-6 topic dimensions, each with 2-3 search queries.\n")
	}
	b.WriteString(`
Reply as JSON:
{"subtasks": [{"id": "t1", "title": "...", "searchQueries": ["..."], "priority": 1}]}`)
	return b.String()
}

// heuristicPlan is the deterministic decomposition used without an LLM and
// as the parse-failure fallback.
func heuristicPlan(task *model.Task) *model.TaskPlan {
	q := task.Query
	var titles [][2]string
	switch task.Type {
	case model.TaskTypeFiction:
		titles = [][2]string{
			{"Setting and world", q + " setting background"},
			{"Opening conflict", q + " story conflict ideas"},
			{"Rising action", q + " plot development"},
			{"Resolution", q + " story resolution"},
		}
	case model.TaskTypePPT:
		titles = [][2]string{
			{"Introduction to " + q, q + " overview"},
			{"Key aspects of " + q, q + " key facts"},
			{"Practical considerations", q + " best practices"},
			{"Outlook", q + " trends"},
		}
	default:
		titles = [][2]string{
			{"Overview", q + " overview"},
			{"Current state", q + " current developments"},
			{"Challenges", q + " challenges problems"},
			{"Outlook", q + " future outlook"},
		}
	}

	plan := &model.TaskPlan{}
	for i, t := range titles {
		plan.Subtasks = append(plan.Subtasks, model.Subtask{
			ID:            fmt.Sprintf("t%d", i+1),
			Title:         t[0],
			SearchQueries: []string{t[1]},
			Priority:      i + 1,
		})
	}
	return plan
}
