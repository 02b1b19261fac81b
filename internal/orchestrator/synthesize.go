package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/ppt"
)

// synthesize composes the long-form artifact from the analysis notes. For
// ppt tasks the deck generator takes over; report and fiction tasks get a
// markdown composition.
func (o *Orchestrator) synthesize(ctx context.Context, logger *slog.Logger, task *model.Task, cfg taskConfig, plan *model.TaskPlan, analysis *model.Analysis, eval *model.Evaluation) (*model.Synthesis, error) {
	if task.Type == model.TaskTypePPT {
		deck := ppt.NewGenerator(o.llm, o.concurrency, logger)
		doc, err := deck.GenerateDeck(ctx, task.Query, cfg.ppt, plan, analysis)
		if err != nil {
			return nil, err
		}
		return &model.Synthesis{
			OutputType:  model.TaskTypePPT,
			Title:       doc.Title,
			HTMLContent: doc.HTMLContent,
			PPT:         doc,
			Metadata: model.SynthesisMetadata{
				ContentSources: eval.Kept,
			},
		}, nil
	}

	content := o.composeDocument(ctx, logger, task, cfg, analysis, eval)
	sections := splitSections(content)

	title := task.Query
	if len(sections) > 0 && strings.HasPrefix(content, "# ") {
		title = strings.TrimSpace(strings.TrimPrefix(strings.SplitN(content, "\n", 2)[0], "# "))
	}

	return &model.Synthesis{
		OutputType: task.Type,
		Title:      title,
		Content:    content,
		Sections:   sections,
		Metadata: model.SynthesisMetadata{
			WordCount:      len(strings.Fields(content)),
			ReportType:     cfg.report.ReportType,
			ContentSources: eval.Kept,
		},
	}, nil
}

func (o *Orchestrator) composeDocument(ctx context.Context, logger *slog.Logger, task *model.Task, cfg taskConfig, analysis *model.Analysis, eval *model.Evaluation) string {
	if !o.llm.IsConfigured() {
		logger.Info("synthesis using extractive composition", "fallback", true)
		return extractiveComposition(task, analysis, eval)
	}

	var b strings.Builder
	if task.Type == model.TaskTypeFiction {
		fmt.Fprintf(&b, "Write a %s %s story from %s viewpoint based on this plan: %s\n\n",
			cfg.fiction.Length, cfg.fiction.Genre, orDefault(cfg.fiction.Viewpoint, "third-person"), task.Query)
	} else {
		fmt.Fprintf(&b, "Write a thorough markdown research report on: %s\n\n", task.Query)
	}
	b.WriteString("Research notes per section:\n\n")
	for _, note := range analysis.Notes {
		fmt.Fprintf(&b, "## %s (%d sources)\n%s\n", note.Title, note.SourceCount, note.Summary)
		for _, c := range note.Contradictions {
			fmt.Fprintf(&b, "- Contradiction: %s\n", c)
		}
		for _, q := range note.OpenQuestions {
			fmt.Fprintf(&b, "- Open question: %s\n", q)
		}
		b.WriteString("\n")
	}
	if eval.Kept == 0 {
		b.WriteString("No usable sources were found. State that explicitly and keep claims general.\n")
	}
	b.WriteString("\nProduce the full document in markdown with ## section headings. Do not invent citations.")

	content, err := o.llm.ChatCompletion(ctx, "You are a long-form writer producing polished markdown.", b.String(),
		client.ChatOptions{Temperature: 0.7, MaxTokens: 4000})
	if err != nil {
		logger.Warn("synthesis call failed, using extractive composition", "error", err, "fallback", true)
		return extractiveComposition(task, analysis, eval)
	}
	return strings.TrimSpace(content)
}

// extractiveComposition builds a document directly from the analysis notes.
// It doubles as the no-LLM mode and the synthesis-failure fallback, and it
// always states when no sources were available.
func extractiveComposition(task *model.Task, analysis *model.Analysis, eval *model.Evaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", task.Query)
	if eval.Kept == 0 {
		b.WriteString("> Note: no usable sources were found for this query; the sections below outline the topic structure without sourced material.\n\n")
	}
	for _, note := range analysis.Notes {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", note.Title, note.Summary)
		for _, c := range note.Contradictions {
			fmt.Fprintf(&b, "- Sources disagree: %s\n", c)
		}
		for _, q := range note.OpenQuestions {
			fmt.Fprintf(&b, "- Open: %s\n", q)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "## Conclusion\n\nThis document covered %d aspects of %q drawing on %d sources.\n",
		len(analysis.Notes), task.Query, eval.Kept)
	return b.String()
}

// splitSections breaks markdown into its ## sections.
func splitSections(content string) []model.Section {
	var sections []model.Section
	var current *model.Section
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			if current != nil {
				current.Content = strings.TrimSpace(current.Content)
				sections = append(sections, *current)
			}
			current = &model.Section{Title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if current != nil {
			current.Content += line + "\n"
		}
	}
	if current != nil {
		current.Content = strings.TrimSpace(current.Content)
		sections = append(sections, *current)
	}
	return sections
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
