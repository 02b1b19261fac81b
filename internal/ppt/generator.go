package ppt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

// Generator coordinates the full deck build: one design call, then one page
// agent per slide under bounded concurrency, then assembly. Slides end up
// ordered by slide number regardless of completion order.
type Generator struct {
	design      *DesignCoordinator
	agent       *PageAgent
	concurrency int
	logger      *slog.Logger
}

// NewGenerator creates a deck generator.
func NewGenerator(llm *client.LLMClient, concurrency int, logger *slog.Logger) *Generator {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Generator{
		design:      NewDesignCoordinator(llm, logger),
		agent:       NewPageAgent(llm, logger),
		concurrency: concurrency,
		logger:      logger,
	}
}

// GenerateDeck builds the complete deck for a ppt task from the decomposed
// plan and the per-subtask analysis.
func (g *Generator) GenerateDeck(ctx context.Context, query string, cfg model.PPTConfig, plan *model.TaskPlan, analysis *model.Analysis) (*model.PPTDocument, error) {
	slideCount := cfg.SlideCount
	if slideCount < 3 {
		slideCount = 10
	}
	style := cfg.Style
	if style == "" {
		style = model.PPTStyleBusiness
	}
	title := cfg.Theme
	if title == "" {
		title = query
	}

	specs := buildSlideSpecs(title, slideCount, plan, analysis)

	outline := make([]string, len(specs))
	for i, s := range specs {
		outline[i] = s.Topic
	}
	design, fallback := g.design.GenerateDesign(ctx, title, outline, style)

	gctx := model.GlobalContext{
		Title:       title,
		Style:       style,
		Design:      design,
		TotalSlides: slideCount,
		SpeechScene: cfg.SpeechScene,
	}

	// Per-subtask research excerpts keyed by topic, handed to each agent.
	excerpts := make(map[string]string)
	if analysis != nil {
		for _, note := range analysis.Notes {
			excerpts[note.Title] = note.Summary
		}
	}

	slides := make([]model.Slide, len(specs))
	notes := make([]string, len(specs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, spec := range specs {
		i, spec := i, spec
		eg.Go(func() error {
			frag, err := g.agent.GeneratePage(egCtx, spec, gctx, excerpts[spec.Topic])
			if err != nil {
				return fmt.Errorf("slide %d: %w", spec.SlideNumber, err)
			}
			slide := model.Slide{
				SlideNumber: spec.SlideNumber,
				PageType:    spec.PageType,
				Topic:       spec.Topic,
				KeyPoints:   spec.KeyPoints,
				HasChart:    spec.HasChart,
				HTMLContent: frag,
			}
			if cfg.SpeechScene != "" {
				sn, err := g.agent.GenerateSpeechNotes(egCtx, spec, gctx)
				if err == nil {
					slide.SpeechNotes = sn
					notes[i] = sn
				}
			}
			slides[i] = slide
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	doc := &model.PPTDocument{
		Title:  title,
		Slides: slides,
		Colors: design,
		Metadata: model.PPTMetadata{
			SlideCount:     slideCount,
			Style:          style,
			DesignFallback: fallback,
		},
		HTMLContent: assembleDeckHTML(title, design, slides),
	}
	if cfg.SpeechScene != "" {
		doc.SpeechNotes = notes
	}
	return doc, nil
}

// buildSlideSpecs lays the plan out over exactly slideCount slides: one
// title slide first, one conclusion last, subtask-derived content between.
// A subtask with enough material ahead of it also earns a section divider.
func buildSlideSpecs(title string, slideCount int, plan *model.TaskPlan, analysis *model.Analysis) []model.PageSpec {
	specs := make([]model.PageSpec, 0, slideCount)
	specs = append(specs, model.PageSpec{
		SlideNumber: 1,
		PageType:    model.PageTypeTitle,
		Topic:       title,
	})

	keyPoints := func(sub model.Subtask) []string {
		if analysis != nil {
			for _, note := range analysis.Notes {
				if note.SubtaskID == sub.ID && len(note.OpenQuestions)+len(note.Contradictions) > 0 {
					pts := append([]string{}, note.OpenQuestions...)
					return append(pts, note.Contradictions...)
				}
			}
		}
		return sub.SearchQueries
	}

	var subtasks []model.Subtask
	if plan != nil {
		subtasks = plan.Subtasks
	}
	if len(subtasks) == 0 {
		subtasks = []model.Subtask{{ID: "t1", Title: title}}
	}

	contentSlots := slideCount - 2
	for i := 0; i < contentSlots; i++ {
		sub := subtasks[i*len(subtasks)/contentSlots]
		pageType := model.PageTypeContent
		topic := sub.Title
		// First slide of a subtask run becomes a section divider when the
		// subtask spans more than one slot.
		if contentSlots > len(subtasks)*2 && i > 0 && isRunStart(i, contentSlots, len(subtasks)) {
			pageType = model.PageTypeSection
		}
		specs = append(specs, model.PageSpec{
			SlideNumber: i + 2,
			PageType:    pageType,
			Topic:       topic,
			KeyPoints:   keyPoints(sub),
			HasChart:    pageType == model.PageTypeContent && i%4 == 2,
		})
	}

	specs = append(specs, model.PageSpec{
		SlideNumber: slideCount,
		PageType:    model.PageTypeConclusion,
		Topic:       "Key takeaways",
		KeyPoints:   subtaskTitles(subtasks),
	})
	return specs
}

func isRunStart(i, slots, n int) bool {
	return i*n/slots != (i-1)*n/slots
}

func subtaskTitles(subs []model.Subtask) []string {
	titles := make([]string, 0, len(subs))
	for _, s := range subs {
		titles = append(titles, s.Title)
	}
	return titles
}

// assembleDeckHTML wraps the slide fragments into one browser-previewable
// document. Fragments themselves stay free of html/body tags.
func assembleDeckHTML(title string, d model.DesignSpec, slides []model.Slide) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	fmt.Fprintf(&b, "<style>html,body{margin:0;padding:0;background:%s}.slide{page-break-after:always}</style>\n", d.SecondaryColor)
	b.WriteString("</head>\n<body>\n")
	for _, s := range slides {
		b.WriteString(s.HTMLContent)
		b.WriteString("\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
